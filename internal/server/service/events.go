package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/infra"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventService транслирует уведомления об изменении каталога всем инстансам
// шлюза. Локальный кэш этого инстанса получает сигнал через ту же подписку.
type EventService struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewEventService(rdb *redis.Client, logger *zap.Logger) *EventService {
	return &EventService{rdb: rdb, logger: logger.Named("catalog-events")}
}

func (s *EventService) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	switch ev.Kind {
	case domain.ChangeItemCreated, domain.ChangeItemUpdated, domain.ChangeItemDeleted, domain.ChangeCollectionUpdated:
	default:
		return fmt.Errorf("events: unknown change kind %q", ev.Kind)
	}
	if ev.TenantID == "" || ev.ID == "" {
		return fmt.Errorf("events: tenant and id are required")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events: marshal: %w", err)
	}

	if err := s.rdb.Publish(ctx, infra.RedisChanCatalogInvalidate, payload).Err(); err != nil {
		return fmt.Errorf("events: publish: %w", err)
	}

	s.logger.Debug("change event published",
		zap.String("tenant", ev.TenantID),
		zap.String("kind", string(ev.Kind)),
		zap.String("id", ev.ID),
	)
	return nil
}
