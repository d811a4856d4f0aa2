package catalog

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
)

// MockProvider — каталог в памяти для локальной разработки и тестов
// (используется, когда catalog.base_url не задан).
type MockProvider struct {
	mu    sync.RWMutex
	items map[string]domain.CatalogFact // item_id -> fact, общий для всех тенантов
}

func NewMockProvider() *MockProvider {
	return &MockProvider{items: make(map[string]domain.CatalogFact)}
}

// Seed кладет факт в мок-каталог.
func (m *MockProvider) Seed(fact domain.CatalogFact) {
	m.mu.Lock()
	m.items[fact.ItemID] = fact
	m.mu.Unlock()
}

func (m *MockProvider) FetchItem(ctx context.Context, creds, itemID string) (*domain.CatalogFact, error) {
	// Имитируем задержку апстрима 5-30мс
	latency := time.Duration(5+rand.Intn(25)) * time.Millisecond
	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.RLock()
	fact, ok := m.items[itemID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	fact.FetchedAt = time.Now()
	return &fact, nil
}

func (m *MockProvider) FetchCollections(ctx context.Context, creds string) ([]domain.Collection, error) {
	return nil, nil
}
