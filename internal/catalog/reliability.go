package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"github.com/Salon-Boss/malia-pro-access/internal/infra"
	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ReliabilityWrapper оборачивает вызовы апстрима в связку
// Rate Limiter -> Circuit Breaker -> Retries с дедлайном на попытку.
// Резолвер выше трактует любой итоговый отказ как fail closed.
type ReliabilityWrapper struct {
	next    Provider
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
}

func NewReliabilityWrapper(next Provider, cfg infra.CatalogConfig) *ReliabilityWrapper {
	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "catalog-upstream",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
	})

	limiter := rate.NewLimiter(rate.Limit(cfg.OutboundRPS), cfg.OutboundBurst)

	return &ReliabilityWrapper{
		next:    next,
		cb:      cb,
		limiter: limiter,
		timeout: cfg.FetchTimeout,
	}
}

func (w *ReliabilityWrapper) FetchItem(ctx context.Context, creds, itemID string) (*domain.CatalogFact, error) {
	res, err := w.execute(ctx, func(tCtx context.Context) (interface{}, error) {
		return w.next.FetchItem(tCtx, creds, itemID)
	})
	if err != nil {
		return nil, err
	}
	return res.(*domain.CatalogFact), nil
}

func (w *ReliabilityWrapper) FetchCollections(ctx context.Context, creds string) ([]domain.Collection, error) {
	res, err := w.execute(ctx, func(tCtx context.Context) (interface{}, error) {
		return w.next.FetchCollections(tCtx, creds)
	})
	if err != nil {
		return nil, err
	}
	return res.([]domain.Collection), nil
}

func (w *ReliabilityWrapper) execute(ctx context.Context, call func(context.Context) (interface{}, error)) (interface{}, error) {
	// 1. Исходящий Rate Limiter (бережем лимиты апстрима)
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: outbound rate limit: %v", ErrUnavailable, err)
	}

	var finalData interface{}

	// 2. Circuit Breaker
	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			// 404 и 401 ретраить бессмысленно — ответ не изменится
			retry.RetryIf(func(err error) bool {
				return !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrUnauthorized)
			}),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если апстрим вернул ThrottleError (вычитан Retry-After заголовок)
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, 500-ка) — стандартный экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.timeout)
			defer cancel()

			var callErr error
			finalData, callErr = call(tCtx)
			return callErr
		})

		return finalData, retryErr
	})

	if err != nil {
		// Открытый предохранитель — тоже Unavailable для решения выше
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: circuit breaker open", ErrUnavailable)
		}
		return nil, err
	}

	return cbResult, nil
}
