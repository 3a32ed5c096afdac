package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eclipse-pass/depositsvc/pkg/metrics"
)

func init() {
	metrics.RegisterAggregateMetricsConstructor(func() metrics.AggregateMetrics { return newAggregateMetrics() })
}

type aggregateMetrics struct {
	tickDuration prometheus.Histogram
	examined     prometheus.Counter
	updated      prometheus.Counter
}

func newAggregateMetrics() *aggregateMetrics {
	reg := metrics.GetRegistry()
	return &aggregateMetrics{
		tickDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "depositsvc_aggregate_tick_duration_seconds",
				Help:    "Duration of one aggregator tick.",
				Buckets: prometheus.DefBuckets,
			},
		),
		examined: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "depositsvc_aggregate_submissions_examined_total",
				Help: "Total number of submitted submissions examined across all ticks.",
			},
		),
		updated: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "depositsvc_aggregate_submissions_updated_total",
				Help: "Total number of submissions whose aggregated status changed across all ticks.",
			},
		),
	}
}

func (m *aggregateMetrics) ObserveTick(duration time.Duration, examined, updated int) {
	if m == nil {
		return
	}
	m.tickDuration.Observe(duration.Seconds())
	m.examined.Add(float64(examined))
	m.updated.Add(float64(updated))
}
