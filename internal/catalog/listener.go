package catalog

import (
	"context"
	"encoding/json"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/infra"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Listener принимает уведомления об изменениях каталога из Redis Pub/Sub
// и применяет их к кэшу раньше любого следующего чтения.
type Listener struct {
	cache  *Cache
	rdb    *redis.Client
	logger *zap.Logger
}

func NewListener(cache *Cache, rdb *redis.Client, logger *zap.Logger) *Listener {
	return &Listener{
		cache:  cache,
		rdb:    rdb,
		logger: logger.Named("catalog-listener"),
	}
}

// Start блокируется до отмены контекста; запускать в отдельной горутине.
func (l *Listener) Start(ctx context.Context) {
	infra.ListenResilient(ctx, l.rdb, l.logger, infra.RedisChanCatalogInvalidate,
		nil, // Ресинк не нужен: пропущенные сигналы добирает TTL
		func(payload string) {
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				l.logger.Error("invalid change event payload", zap.String("payload", payload), zap.Error(err))
				return
			}
			l.cache.Apply(ev)
			l.logger.Debug("cache invalidated",
				zap.String("tenant", ev.TenantID),
				zap.String("kind", string(ev.Kind)),
				zap.String("id", ev.ID),
			)
		})
}
