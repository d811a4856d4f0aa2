package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/infra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCatalogConfig() infra.CatalogConfig {
	return infra.CatalogConfig{
		FetchTimeout:  time.Second,
		OutboundRPS:   1000,
		OutboundBurst: 1000,
		CBMaxRequests: 3,
		CBInterval:    time.Minute,
		CBTimeout:     time.Minute, // В тестах предохранитель не должен успеть закрыться
	}
}

func TestReliabilityWrapper_PassesThroughSuccess(t *testing.T) {
	p := &countingProvider{facts: map[string]domain.CatalogFact{"item-1": {ItemID: "item-1"}}}
	w := NewReliabilityWrapper(p, testCatalogConfig())

	fact, err := w.FetchItem(context.Background(), "shpat_test", "item-1")
	require.NoError(t, err)
	assert.Equal(t, "item-1", fact.ItemID)
	assert.Equal(t, int64(1), p.fetches.Load())
}

func TestReliabilityWrapper_DoesNotRetryNotFound(t *testing.T) {
	p := &countingProvider{facts: map[string]domain.CatalogFact{}}
	w := NewReliabilityWrapper(p, testCatalogConfig())

	_, err := w.FetchItem(context.Background(), "shpat_test", "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int64(1), p.fetches.Load(), "404 must not be retried")
}

func TestReliabilityWrapper_RetriesTransientFailure(t *testing.T) {
	p := &countingProvider{err: ErrUnavailable}
	w := NewReliabilityWrapper(p, testCatalogConfig())

	_, err := w.FetchItem(context.Background(), "shpat_test", "item-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int64(3), p.fetches.Load(), "transient failures get all attempts")
}

func TestReliabilityWrapper_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	p := &countingProvider{err: ErrUnavailable}
	w := NewReliabilityWrapper(p, testCatalogConfig())

	// Наращиваем последовательные отказы, пока предохранитель не откроется
	for i := 0; i < 10; i++ {
		_, _ = w.FetchItem(context.Background(), "shpat_test", "item-1")
	}

	before := p.fetches.Load()
	_, err := w.FetchItem(context.Background(), "shpat_test", "item-1")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, before, p.fetches.Load(), "open breaker must not touch the upstream")
}
