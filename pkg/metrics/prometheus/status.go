package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eclipse-pass/depositsvc/pkg/metrics"
)

func init() {
	metrics.RegisterStatusMetricsConstructor(func() metrics.StatusMetrics { return newStatusMetrics() })
}

type statusMetrics struct {
	pollDuration  *prometheus.HistogramVec
	retryAttempts prometheus.Histogram
}

func newStatusMetrics() *statusMetrics {
	reg := metrics.GetRegistry()
	return &statusMetrics{
		pollDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "depositsvc_status_poll_duration_seconds",
				Help:    "Duration of one status resolver Poll call by outcome.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"}, // "accepted", "rejected", "failed", "retryScheduled", "skipped"
		),
		retryAttempts: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "depositsvc_status_retry_attempt",
				Help:    "Distribution of the attempt number at which a status retry was scheduled.",
				Buckets: []float64{1, 2, 3, 5, 8, 13, 21, 34},
			},
		),
	}
}

func (m *statusMetrics) ObservePoll(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.pollDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *statusMetrics) RecordRetryAttempt(attempt int) {
	if m == nil {
		return
	}
	m.retryAttempts.Observe(float64(attempt))
}
