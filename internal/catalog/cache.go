package catalog

/*
Файл cache.go реализует локальный кэш фактов каталога с ограниченной устареваемостью.

Ключевые свойства:
- Bounded Staleness: факт старше TTL никогда не отдается — он синхронно
  перечитывается из апстрима до использования в решении.
- Request Coalescing: конкурентные запросы одного протухшего ключа схлопываются
  в один апстрим-вызов через singleflight (защита от thundering herd).
- Invalidation First: инвалидация по уведомлению апстрима применяется немедленно
  и имеет приоритет над TTL — следующее чтение пойдет в апстрим.
*/

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CredentialSource выдает тенантский токен апстрима (реализуется policy.Store).
type CredentialSource interface {
	CatalogToken(tenantID string) (string, error)
}

type entry struct {
	fact      domain.CatalogFact
	expiresAt time.Time
}

type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	// Обратный индекс: коллекция -> ключи закэшированных товаров.
	// Нужен, чтобы collection-updated сбрасывал только причастные товары.
	byCollection map[string]map[string]struct{}

	ttl      time.Duration
	group    singleflight.Group
	provider Provider
	creds    CredentialSource
	logger   *zap.Logger

	now func() time.Time // Подменяется в тестах
}

func NewCache(provider Provider, creds CredentialSource, ttl time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		entries:      make(map[string]entry),
		byCollection: make(map[string]map[string]struct{}),
		ttl:          ttl,
		provider:     provider,
		creds:        creds,
		logger:       logger.Named("catalog-cache"),
		now:          time.Now,
	}
}

func itemKey(tenantID, itemID string) string {
	return tenantID + "|" + itemID
}

func collKey(tenantID, collectionID string) string {
	return tenantID + "|" + collectionID
}

// Get возвращает факт каталога, гарантированно не старше TTL.
// На промахе или протухании выполняется ровно один апстрим-вызов на ключ.
func (c *Cache) Get(ctx context.Context, tenantID, itemID string) (domain.CatalogFact, error) {
	key := itemKey(tenantID, itemID)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expiresAt) {
		return e.fact, nil
	}

	// Схлопываем конкурентов на одном ключе в единственный fetch
	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Пока мы ждали очередь singleflight, ключ мог обновиться
		c.mu.RLock()
		e, ok := c.entries[key]
		c.mu.RUnlock()
		if ok && c.now().Before(e.expiresAt) {
			return e.fact, nil
		}

		return c.refresh(ctx, tenantID, itemID, key)
	})
	if err != nil {
		return domain.CatalogFact{}, err
	}
	return v.(domain.CatalogFact), nil
}

func (c *Cache) refresh(ctx context.Context, tenantID, itemID, key string) (interface{}, error) {
	token, err := c.creds.CatalogToken(tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: no credentials for tenant %s", ErrUnauthorized, tenantID)
	}

	fact, err := c.provider.FetchItem(ctx, token, itemID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.dropMembershipsLocked(tenantID, key)
	c.entries[key] = entry{fact: *fact, expiresAt: c.now().Add(c.ttl)}
	for _, cid := range fact.CollectionIDs {
		ck := collKey(tenantID, cid)
		if c.byCollection[ck] == nil {
			c.byCollection[ck] = make(map[string]struct{})
		}
		c.byCollection[ck][key] = struct{}{}
	}
	c.mu.Unlock()

	return *fact, nil
}

// Apply применяет уведомление об изменении каталога.
func (c *Cache) Apply(ev domain.ChangeEvent) {
	switch ev.Kind {
	case domain.ChangeCollectionUpdated:
		c.InvalidateCollection(ev.TenantID, ev.ID)
	case domain.ChangeItemCreated, domain.ChangeItemUpdated, domain.ChangeItemDeleted:
		c.InvalidateItem(ev.TenantID, ev.ID)
	default:
		c.logger.Warn("unknown catalog change kind", zap.String("kind", string(ev.Kind)))
	}
}

// InvalidateItem сбрасывает закэшированный факт одного товара.
func (c *Cache) InvalidateItem(tenantID, itemID string) {
	key := itemKey(tenantID, itemID)
	c.mu.Lock()
	c.dropMembershipsLocked(tenantID, key)
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidateCollection сбрасывает все товары, числившиеся в коллекции.
func (c *Cache) InvalidateCollection(tenantID, collectionID string) {
	ck := collKey(tenantID, collectionID)
	c.mu.Lock()
	for key := range c.byCollection[ck] {
		delete(c.entries, key)
	}
	delete(c.byCollection, ck)
	c.mu.Unlock()
}

// dropMembershipsLocked чистит обратный индекс перед перезаписью/удалением факта.
// Вызывается только под c.mu.
func (c *Cache) dropMembershipsLocked(tenantID, key string) {
	old, ok := c.entries[key]
	if !ok {
		return
	}
	for _, cid := range old.fact.CollectionIDs {
		ck := collKey(tenantID, cid)
		if set := c.byCollection[ck]; set != nil {
			delete(set, key)
			if len(set) == 0 {
				delete(c.byCollection, ck)
			}
		}
	}
}

// Len — текущее число закэшированных фактов (для метрик и тестов).
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
