package audit

/*
Файл trail.go реализует журнал решений (Audit Trail) — высокопроизводительный
движок сбора и персистентности записей AccessDecision.

Ключевые особенности архитектуры:
- Non-blocking Logging: неблокирующий канал на пути решения. Задержки записи
  в БД не влияют на Response Time чекаута.
- Batching & Efficiency: накопление записей в памяти и пакетная вставка
  (Bulk Insert) в PostgreSQL по таймеру или при достижении лимита пачки.
- Drain Pattern & Graceful Shutdown: при остановке сервиса буфер вычитывается
  полностью. sync.WaitGroup и закрытие канала гарантируют Final Flush.
- Isolation: сбой приемника изолирован в воркере и никогда не роняет
  и не блокирует принятие решения.
*/

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Salon-Boss/malia-pro-access/internal/domain"
	"go.uber.org/zap"
)

// StorageInterface определяет, куда физически сохраняются записи
type StorageInterface interface {
	// WriteBatch сохраняет пачку решений за один раз
	WriteBatch(ctx context.Context, decisions []domain.AccessDecision) error
}

// BufferGauge — счетчик заполненности буфера (реализуется prometheus Gauge).
type BufferGauge interface {
	Set(float64)
}

type Trail struct {
	ch     chan domain.AccessDecision // Буфер для асинхронности
	repo   StorageInterface
	logger *zap.Logger
	wg     sync.WaitGroup

	batchSize     int
	flushInterval time.Duration
	gauge         BufferGauge

	// Защита от вызова Log после остановки
	isClosed int32 // Атомарный флаг (0 - открыт, 1 - закрыт)
}

func NewTrail(repo StorageInterface, bufferSize, batchSize int, flushInterval time.Duration, gauge BufferGauge, logger *zap.Logger) *Trail {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if flushInterval <= 0 {
		flushInterval = 500 * time.Millisecond
	}
	return &Trail{
		ch:            make(chan domain.AccessDecision, bufferSize),
		repo:          repo,
		logger:        logger.With(zap.String("mod", "audit-trail")),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		gauge:         gauge,
	}
}

func (t *Trail) Start() {
	t.wg.Add(1)
	go t.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (t *Trail) Stop() {
	// 1. Сначала ставим флаг
	atomic.StoreInt32(&t.isClosed, 1)

	// 2. Даем крошечную паузу, чтобы текущие Log успели проскочить
	time.Sleep(10 * time.Millisecond)

	// 3. Drain Pattern: завершение воркера — только через закрытие входного канала
	t.logger.Info("stopping audit trail: closing channel and flushing buffer...")
	close(t.ch)
	t.wg.Wait()
	t.logger.Info("audit trail stopped gracefully")
}

// Log ставит решение в очередь на запись. Никогда не блокирует.
func (t *Trail) Log(d domain.AccessDecision) {
	// Таймстемп всегда проставлен
	if d.DecidedAt.IsZero() {
		d.DecidedAt = time.Now()
	}

	// Атомарно проверяем, не закрыт ли канал
	if atomic.LoadInt32(&t.isClosed) == 1 {
		t.logger.Warn("audit record dropped: trail is stopping", zap.String("id", d.ID))
		return
	}

	// Стратегия Load Shedding: переполненный буфер не должен тормозить чекаут
	select {
	case t.ch <- d:
	default:
		// Backpressure: фиксируем потерю в обычный лог, чтобы не терять след
		t.logger.Error("audit_buffer_overflow",
			zap.String("tenant", d.TenantID),
			zap.String("trace_id", d.TraceID),
		)
	}
}

func (t *Trail) worker() {
	defer t.wg.Done()

	batch := make([]domain.AccessDecision, 0, t.batchSize)
	ticker := time.NewTicker(t.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) > 0 {
			// Background: основной контекст на shutdown уже может быть закрыт
			if err := t.repo.WriteBatch(context.Background(), batch); err != nil {
				t.logger.Error("audit flush failed", zap.Error(err))
			}
			batch = batch[:0]
		}
	}

	for {
		if t.gauge != nil {
			t.gauge.Set(float64(len(t.ch)))
		}

		select {
		case d, ok := <-t.ch:
			if !ok {
				// Канал закрыт в Stop(): воркер сначала вычитал остатки,
				// только потом получил ok == false — финальный flush и выход
				flush()
				t.logger.Info("audit worker finished")
				return
			}
			batch = append(batch, d)
			if len(batch) >= t.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
