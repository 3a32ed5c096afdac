package metrics

import "time"

// StatusMetrics observes pkg/status.Resolver.Poll (spec.md §4.9):
// fetch/resolution latency and the terminal outcome of each poll.
type StatusMetrics interface {
	// ObservePoll records one Poll call's outcome ("accepted",
	// "rejected", "failed", "retryScheduled", "skipped") and the time
	// it took, measured from fetch through CRI update.
	ObservePoll(outcome string, duration time.Duration)

	// RecordRetryAttempt records the attempt number a retry was
	// scheduled at, for tracking how deep the backoff schedule runs.
	RecordRetryAttempt(attempt int)
}

var newPrometheusStatusMetrics func() StatusMetrics

// RegisterStatusMetricsConstructor is called by
// pkg/metrics/prometheus/status.go during package initialization.
func RegisterStatusMetricsConstructor(constructor func() StatusMetrics) {
	newPrometheusStatusMetrics = constructor
}

// NewStatusMetrics returns a Prometheus-backed StatusMetrics, or nil
// if metrics are disabled.
func NewStatusMetrics() StatusMetrics {
	if !IsEnabled() || newPrometheusStatusMetrics == nil {
		return nil
	}
	return newPrometheusStatusMetrics()
}
