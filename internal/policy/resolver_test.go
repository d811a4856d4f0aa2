package policy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/catalog"
	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubFacts отдает заранее заданные факты без похода в апстрим.
type stubFacts struct {
	facts map[string]domain.CatalogFact
	err   error
}

func (s *stubFacts) Get(_ context.Context, _, itemID string) (domain.CatalogFact, error) {
	if s.err != nil {
		return domain.CatalogFact{}, s.err
	}
	f, ok := s.facts[itemID]
	if !ok {
		return domain.CatalogFact{}, catalog.ErrNotFound
	}
	return f, nil
}

func newTestStore(t *testing.T, pol *domain.TenantPolicy) *Store {
	t.Helper()
	store := NewStore(nil, nil, zap.NewNop())
	store.Put(pol, &domain.Tenant{ID: pol.TenantID, CatalogToken: "shpat_test"})
	return store
}

func TestResolver_OverrideWinsOverEverything(t *testing.T) {
	pol := testPolicy()
	pol.Overrides = map[string]domain.ItemOverride{
		"item-exclusive": {
			TenantID: pol.TenantID,
			ItemID:   "item-exclusive",
			TierName: "butterfly_paid",
			Message:  "Members only. Join the club.",
		},
	}
	// Факт говорит, что товар в открытой коллекции — override обязан победить
	facts := &stubFacts{facts: map[string]domain.CatalogFact{
		"item-exclusive": {ItemID: "item-exclusive", CollectionIDs: []string{"verified-drop"}},
	}}
	r := NewResolver(newTestStore(t, pol), facts)

	req, err := r.RequiredTier(context.Background(), pol.TenantID, "item-exclusive")
	require.NoError(t, err)
	assert.Equal(t, "butterfly_paid", req.Tier)
	assert.Equal(t, domain.SourceOverride, req.Source)
	assert.Equal(t, "Members only. Join the club.", req.Message)
}

func TestResolver_MostRestrictiveCollectionWins(t *testing.T) {
	pol := testPolicy()
	facts := &stubFacts{facts: map[string]domain.CatalogFact{
		// Товар сразу в двух коллекциях с разными требованиями
		"item-both": {ItemID: "item-both", CollectionIDs: []string{"verified-drop", "members-only"}},
	}}
	r := NewResolver(newTestStore(t, pol), facts)

	req, err := r.RequiredTier(context.Background(), pol.TenantID, "item-both")
	require.NoError(t, err)
	assert.Equal(t, "butterfly_paid", req.Tier, "strictest rule must win")
	assert.Equal(t, domain.SourceCollection, req.Source)
}

func TestResolver_FallsBackToDefaultTier(t *testing.T) {
	pol := testPolicy()
	facts := &stubFacts{facts: map[string]domain.CatalogFact{
		"item-plain": {ItemID: "item-plain", CollectionIDs: []string{"summer-sale"}},
	}}
	r := NewResolver(newTestStore(t, pol), facts)

	req, err := r.RequiredTier(context.Background(), pol.TenantID, "item-plain")
	require.NoError(t, err)
	assert.Equal(t, "public", req.Tier)
	assert.Equal(t, domain.SourceDefault, req.Source)
}

func TestResolver_ItemNotFound(t *testing.T) {
	pol := testPolicy()
	r := NewResolver(newTestStore(t, pol), &stubFacts{facts: map[string]domain.CatalogFact{}})

	_, err := r.RequiredTier(context.Background(), pol.TenantID, "ghost-item")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestResolver_CatalogUnavailable(t *testing.T) {
	pol := testPolicy()
	r := NewResolver(newTestStore(t, pol), &stubFacts{err: catalog.ErrUnavailable})

	_, err := r.RequiredTier(context.Background(), pol.TenantID, "item-plain")
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestResolver_RuleWithUnknownTierIsMisconfigured(t *testing.T) {
	pol := testPolicy()
	pol.Rules = append(pol.Rules, domain.CollectionRule{CollectionID: "broken", TierName: "ghost"})
	facts := &stubFacts{facts: map[string]domain.CatalogFact{
		"item-x": {ItemID: "item-x", CollectionIDs: []string{"broken"}},
	}}
	r := NewResolver(newTestStore(t, pol), facts)

	_, err := r.RequiredTier(context.Background(), pol.TenantID, "item-x")
	assert.ErrorIs(t, err, ErrMisconfigured)
}

func TestResolver_UnknownTenant(t *testing.T) {
	store := NewStore(nil, nil, zap.NewNop())
	r := NewResolver(store, &stubFacts{})

	_, err := r.RequiredTier(context.Background(), "nobody", "item-1")
	assert.ErrorIs(t, err, ErrTenantUnknown)
}

func TestResolver_OverrideDoesNotTouchCatalog(t *testing.T) {
	pol := testPolicy()
	pol.Overrides = map[string]domain.ItemOverride{
		"item-pinned": {TenantID: pol.TenantID, ItemID: "item-pinned", TierName: "verified", UpdatedAt: time.Now()},
	}
	// Каталог лежит, но override разрешается без него
	r := NewResolver(newTestStore(t, pol), &stubFacts{err: errors.New("upstream is down")})

	req, err := r.RequiredTier(context.Background(), pol.TenantID, "item-pinned")
	require.NoError(t, err)
	assert.Equal(t, "verified", req.Tier)
}
