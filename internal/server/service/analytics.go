package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
)

// AuditQueryProvider описывает контракт чтения агрегатов аудита.
type AuditQueryProvider interface {
	QueryReasonCounts(ctx context.Context, tenantID string, since time.Time) ([]domain.ReasonCount, error)
}

type AnalyticsService struct {
	repo AuditQueryProvider
}

func NewAnalyticsService(repo AuditQueryProvider) *AnalyticsService {
	return &AnalyticsService{repo: repo}
}

// ReasonCounts возвращает распределение решений по кодам причин за N дней.
func (s *AnalyticsService) ReasonCounts(ctx context.Context, tenantID string, days int) ([]domain.ReasonCount, error) {
	if days < 1 {
		days = 1
	}
	if days > 90 {
		days = 90 // Старше ретеншена все равно ничего нет
	}

	since := time.Now().AddDate(0, 0, -days)
	counts, err := s.repo.QueryReasonCounts(ctx, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("analytics: failed to fetch reason counts: %w", err)
	}
	return counts, nil
}
