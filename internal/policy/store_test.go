package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubRepo имитирует Postgres-слой политик.
type stubRepo struct {
	policies map[string]*domain.TenantPolicy
	tenants  map[string]*domain.Tenant
	failList bool
}

func (s *stubRepo) GetTenantPolicy(_ context.Context, tenantID string) (*domain.TenantPolicy, error) {
	p, ok := s.policies[tenantID]
	if !ok {
		return nil, errors.New("no such tenant")
	}
	return p, nil
}

func (s *stubRepo) GetTenant(_ context.Context, tenantID string) (*domain.Tenant, error) {
	t, ok := s.tenants[tenantID]
	if !ok {
		return nil, errors.New("no such tenant")
	}
	return t, nil
}

func (s *stubRepo) ListTenantIDs(_ context.Context) ([]string, error) {
	if s.failList {
		return nil, errors.New("db down")
	}
	ids := make([]string, 0, len(s.policies))
	for id := range s.policies {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestStore_RefreshAll(t *testing.T) {
	pol := testPolicy()
	repo := &stubRepo{
		policies: map[string]*domain.TenantPolicy{pol.TenantID: pol},
		tenants: map[string]*domain.Tenant{
			pol.TenantID: {ID: pol.TenantID, CatalogToken: "shpat_abc"},
		},
	}
	store := NewStore(repo, nil, zap.NewNop())

	require.NoError(t, store.RefreshAll(context.Background()))

	got, err := store.Get(pol.TenantID)
	require.NoError(t, err)
	assert.Equal(t, pol.TenantID, got.TenantID)

	token, err := store.CatalogToken(pol.TenantID)
	require.NoError(t, err)
	assert.Equal(t, "shpat_abc", token)
}

func TestStore_RefreshAllPropagatesDBError(t *testing.T) {
	store := NewStore(&stubRepo{failList: true}, nil, zap.NewNop())
	assert.Error(t, store.RefreshAll(context.Background()))
}

func TestStore_UnknownTenant(t *testing.T) {
	store := NewStore(&stubRepo{}, nil, zap.NewNop())

	_, err := store.Get("nobody")
	assert.ErrorIs(t, err, ErrTenantUnknown)

	_, err = store.CatalogToken("nobody")
	assert.ErrorIs(t, err, ErrTenantUnknown)
}

func TestStore_RefreshTenantSwapsSnapshot(t *testing.T) {
	pol := testPolicy()
	repo := &stubRepo{
		policies: map[string]*domain.TenantPolicy{pol.TenantID: pol},
		tenants:  map[string]*domain.Tenant{pol.TenantID: {ID: pol.TenantID}},
	}
	store := NewStore(repo, nil, zap.NewNop())
	require.NoError(t, store.RefreshAll(context.Background()))

	// Меняем документ в "базе" и дергаем точечный рефреш
	updated := testPolicy()
	updated.DefaultTier = "verified"
	repo.policies[pol.TenantID] = updated

	require.NoError(t, store.RefreshTenant(context.Background(), pol.TenantID))

	got, err := store.Get(pol.TenantID)
	require.NoError(t, err)
	assert.Equal(t, "verified", got.DefaultTier)
}
