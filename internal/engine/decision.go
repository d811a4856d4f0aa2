package engine

import (
	"context"
	"errors"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/policy"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Auditor — куда уходят принятые решения (best-effort, не блокирует ответ).
type Auditor interface {
	Log(decision domain.AccessDecision)
}

// DecisionInput — все, что нужно для одной проверки.
type DecisionInput struct {
	TenantID   string
	CustomerID string // Пусто для анонимов
	Tags       []string
	ItemID     string
	TraceID    string
}

// Core — движок решений о доступе к покупке.
// Комбинирует резолвер требований и классификатор покупателя в вердикт,
// применяя единое правило fail closed: любая неопределенность = deny.
type Core struct {
	store    *policy.Store
	resolver *policy.Resolver
	auditor  Auditor
	metrics  *Metrics
	logger   *zap.Logger

	// Параллелизм разбора корзины
	batchConcurrency int
}

func NewCore(store *policy.Store, resolver *policy.Resolver, auditor Auditor, metrics *Metrics, logger *zap.Logger) *Core {
	return &Core{
		store:            store,
		resolver:         resolver,
		auditor:          auditor,
		metrics:          metrics,
		logger:           logger.Named("decision-core"),
		batchConcurrency: 8,
	}
}

// Decide принимает решение по одному товару.
// Детерминировано при фиксированных политике, кэше и входе.
// Ошибка не возвращается: все отказные ветки схлопнуты в deny с кодом причины.
func (c *Core) Decide(ctx context.Context, in DecisionInput) domain.AccessDecision {
	start := time.Now()

	d := domain.AccessDecision{
		ID:         uuid.New().String(),
		TraceID:    in.TraceID,
		TenantID:   in.TenantID,
		ItemID:     in.ItemID,
		CustomerID: in.CustomerID,
		DecidedAt:  start,
	}

	pol, err := c.store.Get(in.TenantID)
	if err != nil {
		// Неизвестный арендатор: решать нечем — запрет
		c.finish(&d, start, domain.VerdictDeny, domain.ReasonMisconfigured)
		return d
	}

	d.Held = policy.HeldTier(pol, in.Tags)

	required, err := c.resolver.RequiredTier(ctx, in.TenantID, in.ItemID)
	if err != nil {
		c.finish(&d, start, domain.VerdictDeny, failClosedReason(err))
		return d
	}
	d.Required = required.Tier
	d.Message = required.Message

	reqRank, err := pol.TierRank(required.Tier)
	if err != nil {
		// Override/правило ссылается на ступень, которой нет в списке
		c.finish(&d, start, domain.VerdictDeny, domain.ReasonMisconfigured)
		return d
	}
	heldRank, err := pol.TierRank(d.Held)
	if err != nil {
		c.finish(&d, start, domain.VerdictDeny, domain.ReasonMisconfigured)
		return d
	}

	if heldRank >= reqRank {
		c.finish(&d, start, domain.VerdictAllow, domain.ReasonAllowed)
	} else {
		c.finish(&d, start, domain.VerdictDeny, domain.ReasonInsufficientTier)
	}
	return d
}

// DecideBatch проверяет корзину: каждый товар независимо, без short-circuit,
// чтобы вызывающий получил полную разбивку и убрал только отклоненные позиции.
// Итоговый вердикт ждет завершения всех позиций — частичных результатов нет.
func (c *Core) DecideBatch(ctx context.Context, tenantID, customerID string, tags []string, itemIDs []string) domain.BatchDecision {
	traceID := extractTraceID(ctx)

	results := make([]domain.AccessDecision, len(itemIDs))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(c.batchConcurrency)
	for i, itemID := range itemIDs {
		i, itemID := i, itemID
		g.Go(func() error {
			results[i] = c.Decide(gCtx, DecisionInput{
				TenantID:   tenantID,
				CustomerID: customerID,
				Tags:       tags,
				ItemID:     itemID,
				TraceID:    traceID,
			})
			return nil
		})
	}
	// Decide не возвращает ошибок — Wait здесь только барьер
	_ = g.Wait()

	overall := true
	for i := range results {
		if results[i].Verdict != domain.VerdictAllow {
			overall = false
		}
	}

	return domain.BatchDecision{
		TenantID: tenantID,
		Allowed:  overall,
		PerItem:  results,
	}
}

// finish дописывает вердикт, шлет метрики и асинхронно пишет аудит.
// Сбой аудита никогда не роняет решение.
func (c *Core) finish(d *domain.AccessDecision, start time.Time, v domain.Verdict, reason domain.Reason) {
	d.Verdict = v
	d.Reason = reason
	d.DurationMs = time.Since(start).Milliseconds()

	c.metrics.DecisionsTotal.WithLabelValues(d.TenantID, string(v), string(reason)).Inc()
	c.metrics.DecisionDuration.WithLabelValues(d.TenantID, string(v)).Observe(time.Since(start).Seconds())
	if reason == domain.ReasonUnavailable || reason == domain.ReasonNotFound {
		c.metrics.CatalogFailures.WithLabelValues(d.TenantID, string(reason)).Inc()
	}

	c.auditor.Log(*d)
}

// failClosedReason — единая точка трансляции ошибок резолвера в коды отказа.
func failClosedReason(err error) domain.Reason {
	switch {
	case errors.Is(err, policy.ErrItemNotFound):
		return domain.ReasonNotFound
	case errors.Is(err, policy.ErrCatalogUnavailable):
		return domain.ReasonUnavailable
	case errors.Is(err, policy.ErrMisconfigured), errors.Is(err, policy.ErrTenantUnknown):
		return domain.ReasonMisconfigured
	default:
		// Неизвестная ошибка — все равно закрываемся
		return domain.ReasonUnavailable
	}
}
