package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingProvider считает реальные походы в апстрим.
type countingProvider struct {
	fetches atomic.Int64
	delay   time.Duration
	facts   map[string]domain.CatalogFact
	err     error
}

func (p *countingProvider) FetchItem(ctx context.Context, _, itemID string) (*domain.CatalogFact, error) {
	p.fetches.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	f, ok := p.facts[itemID]
	if !ok {
		return nil, ErrNotFound
	}
	return &f, nil
}

func (p *countingProvider) FetchCollections(context.Context, string) ([]domain.Collection, error) {
	return nil, nil
}

type staticCreds struct{}

func (staticCreds) CatalogToken(string) (string, error) { return "shpat_test", nil }

func newTestCache(p Provider, ttl time.Duration) *Cache {
	return NewCache(p, staticCreds{}, ttl, zap.NewNop())
}

func TestCache_MissThenHit(t *testing.T) {
	p := &countingProvider{facts: map[string]domain.CatalogFact{
		"item-1": {ItemID: "item-1", CollectionIDs: []string{"members-only"}},
	}}
	c := newTestCache(p, 5*time.Minute)

	got, err := c.Get(context.Background(), "shop-a", "item-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"members-only"}, got.CollectionIDs)
	assert.Equal(t, int64(1), p.fetches.Load())

	// Повторное чтение в пределах TTL — только память
	_, err = c.Get(context.Background(), "shop-a", "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.fetches.Load())
}

func TestCache_CoalescesConcurrentMisses(t *testing.T) {
	p := &countingProvider{
		delay: 20 * time.Millisecond, // Даем конкурентам время столкнуться
		facts: map[string]domain.CatalogFact{"item-1": {ItemID: "item-1"}},
	}
	c := newTestCache(p, 5*time.Minute)

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Get(context.Background(), "shop-a", "item-1")
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(1), p.fetches.Load(), "concurrent misses must collapse into one upstream fetch")
}

func TestCache_ExpiredEntryRefetches(t *testing.T) {
	p := &countingProvider{facts: map[string]domain.CatalogFact{"item-1": {ItemID: "item-1"}}}
	c := newTestCache(p, time.Minute)

	base := time.Now()
	c.now = func() time.Time { return base }

	_, err := c.Get(context.Background(), "shop-a", "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.fetches.Load())

	// Внутри TTL — из памяти
	c.now = func() time.Time { return base.Add(59 * time.Second) }
	_, err = c.Get(context.Background(), "shop-a", "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.fetches.Load())

	// За границей TTL факт протух и обязан перечитаться
	c.now = func() time.Time { return base.Add(61 * time.Second) }
	_, err = c.Get(context.Background(), "shop-a", "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.fetches.Load())
}

func TestCache_InvalidateItem(t *testing.T) {
	p := &countingProvider{facts: map[string]domain.CatalogFact{
		"item-1": {ItemID: "item-1", CollectionIDs: []string{"sale"}},
	}}
	c := newTestCache(p, time.Hour)

	_, err := c.Get(context.Background(), "shop-a", "item-1")
	require.NoError(t, err)

	c.InvalidateItem("shop-a", "item-1")
	assert.Equal(t, 0, c.Len())

	// Следующее чтение идет в апстрим, не дожидаясь TTL
	_, err = c.Get(context.Background(), "shop-a", "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.fetches.Load())
}

func TestCache_InvalidateCollectionDropsOnlyMembers(t *testing.T) {
	p := &countingProvider{facts: map[string]domain.CatalogFact{
		"item-in":  {ItemID: "item-in", CollectionIDs: []string{"members-only"}},
		"item-out": {ItemID: "item-out", CollectionIDs: []string{"summer-sale"}},
	}}
	c := newTestCache(p, time.Hour)

	_, err := c.Get(context.Background(), "shop-a", "item-in")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "shop-a", "item-out")
	require.NoError(t, err)
	require.Equal(t, 2, c.Len())

	c.Apply(domain.ChangeEvent{TenantID: "shop-a", Kind: domain.ChangeCollectionUpdated, ID: "members-only"})

	// Пострадал только причастный товар
	assert.Equal(t, 1, c.Len())

	_, err = c.Get(context.Background(), "shop-a", "item-out")
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.fetches.Load(), "untouched item stays served from memory")
}

func TestCache_ApplyItemEvents(t *testing.T) {
	p := &countingProvider{facts: map[string]domain.CatalogFact{"item-1": {ItemID: "item-1"}}}
	c := newTestCache(p, time.Hour)

	_, err := c.Get(context.Background(), "shop-a", "item-1")
	require.NoError(t, err)

	c.Apply(domain.ChangeEvent{TenantID: "shop-a", Kind: domain.ChangeItemUpdated, ID: "item-1"})
	assert.Equal(t, 0, c.Len())
}

func TestCache_TenantsDoNotShareEntries(t *testing.T) {
	p := &countingProvider{facts: map[string]domain.CatalogFact{"item-1": {ItemID: "item-1"}}}
	c := newTestCache(p, time.Hour)

	_, err := c.Get(context.Background(), "shop-a", "item-1")
	require.NoError(t, err)
	_, err = c.Get(context.Background(), "shop-b", "item-1")
	require.NoError(t, err)

	// Один и тот же товар у разных арендаторов — разные ключи
	assert.Equal(t, int64(2), p.fetches.Load())
	assert.Equal(t, 2, c.Len())
}

func TestCache_UpstreamErrorIsNotCached(t *testing.T) {
	p := &countingProvider{err: ErrUnavailable}
	c := newTestCache(p, time.Hour)

	_, err := c.Get(context.Background(), "shop-a", "item-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 0, c.Len(), "failures must not poison the cache")

	// Апстрим ожил — следующий запрос проходит
	p.err = nil
	p.facts = map[string]domain.CatalogFact{"item-1": {ItemID: "item-1"}}
	_, err = c.Get(context.Background(), "shop-a", "item-1")
	assert.NoError(t, err)
}
