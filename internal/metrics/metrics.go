package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"
)

// Metrics счётчики и гистограммы пайплайна доставки
type Metrics struct {
	registry *prometheus.Registry

	ImpressionsIngested prometheus.Counter
	ClicksIngested      prometheus.Counter
	ClicksBlocked       prometheus.Counter
	RollupDuration      prometheus.Histogram
	ReconcileDuration   prometheus.Histogram
}

// New создаёт и регистрирует метрики в отдельном registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		ImpressionsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adtracker",
			Name:      "impressions_ingested_total",
			Help:      "Total number of impressions ingested",
		}),
		ClicksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adtracker",
			Name:      "clicks_ingested_total",
			Help:      "Total number of clicks ingested",
		}),
		ClicksBlocked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adtracker",
			Name:      "clicks_blocked_total",
			Help:      "Total number of clicks blocked by fraud scoring",
		}),
		RollupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adtracker",
			Name:      "rollup_duration_seconds",
			Help:      "Duration of metric rollup runs",
			Buckets:   prometheus.DefBuckets,
		}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adtracker",
			Name:      "reconcile_duration_seconds",
			Help:      "Duration of inventory reconciliation runs",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		m.ImpressionsIngested,
		m.ClicksIngested,
		m.ClicksBlocked,
		m.RollupDuration,
		m.ReconcileDuration,
	)

	return m
}

// Handler HTTP-обработчик для экспорта метрик
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
