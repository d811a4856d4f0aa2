package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: сколько заняло одно решение (включая поход в каталог на промахе)
	DecisionDuration *prometheus.HistogramVec

	// Traffic: решения по вердикту и причине
	DecisionsTotal *prometheus.CounterVec

	// Errors: отказы из-за каталога (not_found / unavailable)
	CatalogFailures *prometheus.CounterVec

	// Входной лимитер: отклоненные запросы по ключу не считаем — только всего
	RateLimited prometheus.Counter

	// Saturation: заполненность буфера аудита (backpressure)
	AuditBufferFill prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern — если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		DecisionDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "malia_decision_duration_seconds",
			Help:    "Histogram of access decision latencies.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"tenant", "verdict"}),

		DecisionsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "malia_decisions_total",
			Help: "Total number of access decisions.",
		}, []string{"tenant", "verdict", "reason"}),

		CatalogFailures: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "malia_catalog_failures_total",
			Help: "Decisions denied because the catalog could not confirm an item.",
		}, []string{"tenant", "reason"}),

		RateLimited: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "malia_rate_limited_total",
			Help: "Requests rejected by the inbound sliding-window limiter.",
		}),

		AuditBufferFill: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "malia_audit_buffer_utilization",
			Help: "Current number of decisions in the audit buffer.",
		}),
	}
}
