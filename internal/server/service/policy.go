package service

import (
	"context"
	"fmt"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/infra"
	"github.com/Salon-Boss/malia-pro-access/internal/policy"
	"github.com/redis/go-redis/v9"
)

// PolicyRepository описывает требования сервиса к хранилищу конфигурации
type PolicyRepository interface {
	GetTenantPolicy(ctx context.Context, tenantID string) (*domain.TenantPolicy, error)
	ReplaceTenantPolicy(ctx context.Context, p *domain.TenantPolicy) error
	UpsertOverride(ctx context.Context, o *domain.ItemOverride) error
	DeleteOverride(ctx context.Context, tenantID, itemID string) error
	ListOverrides(ctx context.Context, tenantID string) ([]domain.ItemOverride, error)
}

type PolicyService struct {
	repo PolicyRepository
	rdb  *redis.Client
}

func NewPolicyService(repo PolicyRepository, rdb *redis.Client) *PolicyService {
	return &PolicyService{repo: repo, rdb: rdb}
}

func (s *PolicyService) GetPolicy(ctx context.Context, tenantID string) (*domain.TenantPolicy, error) {
	return s.repo.GetTenantPolicy(ctx, tenantID)
}

// ReplacePolicy валидирует и сохраняет документ политики, затем будит шлюзы.
// Битая конфигурация (дубли рангов, ссылки на несуществующие ступени)
// отбивается здесь и никогда не доезжает до горячего пути.
func (s *PolicyService) ReplacePolicy(ctx context.Context, p *domain.TenantPolicy) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %v", policy.ErrMisconfigured, err)
	}
	if err := s.repo.ReplaceTenantPolicy(ctx, p); err != nil {
		return err
	}
	return s.notifyUpdate(ctx, p.TenantID)
}

// UpsertOverride идемпотентно выставляет требование для товара.
func (s *PolicyService) UpsertOverride(ctx context.Context, o *domain.ItemOverride) error {
	// Ступень должна существовать в действующей политике арендатора
	pol, err := s.repo.GetTenantPolicy(ctx, o.TenantID)
	if err != nil {
		return err
	}
	if _, err := pol.TierRank(o.TierName); err != nil {
		return fmt.Errorf("%w: %v", policy.ErrMisconfigured, err)
	}

	if err := s.repo.UpsertOverride(ctx, o); err != nil {
		return err
	}
	return s.notifyUpdate(ctx, o.TenantID)
}

func (s *PolicyService) DeleteOverride(ctx context.Context, tenantID, itemID string) error {
	if err := s.repo.DeleteOverride(ctx, tenantID, itemID); err != nil {
		return err
	}
	return s.notifyUpdate(ctx, tenantID)
}

func (s *PolicyService) ListOverrides(ctx context.Context, tenantID string) ([]domain.ItemOverride, error) {
	return s.repo.ListOverrides(ctx, tenantID)
}

// notifyUpdate отправляет широковещательный сигнал в Redis.
// Все инстансы шлюза, подписанные на канал, перечитают политику арендатора.
func (s *PolicyService) notifyUpdate(ctx context.Context, tenantID string) error {
	return s.rdb.Publish(ctx, infra.RedisChanPolicyUpdate, tenantID+":refresh").Err()
}
