// Package prometheus provides the concrete Prometheus-backed
// implementations of the pkg/metrics interfaces, registered with their
// package via init() so pkg/metrics itself never imports the client
// libraries directly.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eclipse-pass/depositsvc/pkg/metrics"
)

func init() {
	metrics.RegisterCRIMetricsConstructor(func() metrics.CRIMetrics { return newCRIMetrics() })
}

type criMetrics struct {
	attempts        *prometheus.CounterVec
	conflicts       *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	attemptsPerCall *prometheus.HistogramVec
}

func newCRIMetrics() *criMetrics {
	reg := metrics.GetRegistry()
	return &criMetrics{
		attempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "depositsvc_cri_attempts_total",
				Help: "Total number of CRI read-modify-write attempts by entity kind.",
			},
			[]string{"kind"},
		),
		conflicts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "depositsvc_cri_conflicts_total",
				Help: "Total number of CRI version conflicts by entity kind.",
			},
			[]string{"kind"},
		),
		outcomes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "depositsvc_cri_outcomes_total",
				Help: "Total number of completed CRI calls by entity kind and outcome.",
			},
			[]string{"kind", "outcome"}, // outcome: "success", "failed"
		),
		attemptsPerCall: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "depositsvc_cri_attempts_per_call",
				Help:    "Distribution of attempts needed per completed CRI call.",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8},
			},
			[]string{"kind"},
		),
	}
}

func (m *criMetrics) ObserveAttempt(kind string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(kind).Inc()
}

func (m *criMetrics) ObserveConflict(kind string) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(kind).Inc()
}

func (m *criMetrics) ObserveOutcome(kind string, attempts int, success bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if success {
		outcome = "success"
	}
	m.outcomes.WithLabelValues(kind, outcome).Inc()
	m.attemptsPerCall.WithLabelValues(kind).Observe(float64(attempts))
}
