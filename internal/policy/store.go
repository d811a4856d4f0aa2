package policy

import (
	"context"
	"strings"
	"sync"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/infra"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Repository описывает требования стора к долговременному хранилищу политик.
type Repository interface {
	GetTenantPolicy(ctx context.Context, tenantID string) (*domain.TenantPolicy, error)
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// Store — In-memory снапшоты политик всех арендаторов.
// Горячий путь решений работает только с RAM и не знает про Postgres.
// Синхронизация с БД идет через холодную загрузку при старте и
// сигналы Redis Pub/Sub при изменениях в консоли управления.
type Store struct {
	mu sync.RWMutex
	// Кэш: tenant_id -> неизменяемый снапшот политики
	policies map[string]*domain.TenantPolicy
	tenants  map[string]*domain.Tenant

	repo   Repository // Используется только для Refresh
	rdb    *redis.Client
	logger *zap.Logger
}

func NewStore(repo Repository, rdb *redis.Client, logger *zap.Logger) *Store {
	return &Store{
		policies: make(map[string]*domain.TenantPolicy),
		tenants:  make(map[string]*domain.Tenant),
		repo:     repo,
		rdb:      rdb,
		logger:   logger.Named("policy-store"),
	}
}

// Get возвращает снапшот политики арендатора. Снапшот не мутируется —
// вызывающие могут читать его без блокировок.
func (s *Store) Get(tenantID string) (*domain.TenantPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.policies[tenantID]
	if !ok {
		return nil, ErrTenantUnknown
	}
	return p, nil
}

// CatalogToken реализует catalog.CredentialSource.
func (s *Store) CatalogToken(tenantID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tenants[tenantID]
	if !ok {
		return "", ErrTenantUnknown
	}
	return t.CatalogToken, nil
}

// Put кладет готовый снапшот (тесты и горячая подмена из листенера).
func (s *Store) Put(p *domain.TenantPolicy, t *domain.Tenant) {
	s.mu.Lock()
	s.policies[p.TenantID] = p
	if t != nil {
		s.tenants[t.ID] = t
	}
	s.mu.Unlock()
}

// RefreshAll выполняет «холодную загрузку» политик всех арендаторов из PostgreSQL (при старте).
func (s *Store) RefreshAll(ctx context.Context) error {
	ids, err := s.repo.ListTenantIDs(ctx)
	if err != nil {
		return err
	}

	newPolicies := make(map[string]*domain.TenantPolicy, len(ids))
	newTenants := make(map[string]*domain.Tenant, len(ids))
	for _, id := range ids {
		p, err := s.repo.GetTenantPolicy(ctx, id)
		if err != nil {
			return err
		}
		t, err := s.repo.GetTenant(ctx, id)
		if err != nil {
			return err
		}
		newPolicies[id] = p
		newTenants[id] = t
	}

	s.mu.Lock()
	s.policies = newPolicies
	s.tenants = newTenants
	s.mu.Unlock()

	s.logger.Info("policy cache refreshed", zap.Int("tenants", len(newPolicies)))
	return nil
}

// RefreshTenant перечитывает политику одного арендатора.
func (s *Store) RefreshTenant(ctx context.Context, tenantID string) error {
	p, err := s.repo.GetTenantPolicy(ctx, tenantID)
	if err != nil {
		return err
	}
	t, err := s.repo.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.policies[tenantID] = p
	s.tenants[tenantID] = t
	s.mu.Unlock()

	s.logger.Info("tenant policy refreshed", zap.String("tenant", tenantID))
	return nil
}

// StartListener подписывается на сигналы обновления политик.
// Формат payload: "tenant_id:refresh". Блокируется до отмены контекста.
func (s *Store) StartListener(ctx context.Context) {
	infra.ListenResilient(ctx, s.rdb, s.logger, infra.RedisChanPolicyUpdate,
		func() error {
			// При (пере)подключении добираем все, что могли пропустить
			return s.RefreshAll(ctx)
		},
		func(payload string) {
			tenantID, _, ok := strings.Cut(payload, ":")
			if !ok || tenantID == "" {
				s.logger.Error("invalid policy signal format", zap.String("payload", payload))
				return
			}
			if err := s.RefreshTenant(ctx, tenantID); err != nil {
				s.logger.Error("tenant refresh failed", zap.String("tenant", tenantID), zap.Error(err))
			}
		})
}
