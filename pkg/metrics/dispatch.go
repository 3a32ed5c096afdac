package metrics

import "time"

// DispatchMetrics observes pkg/dispatch's worker pool (spec.md §4.8):
// queue depth, submission outcomes, and per-task run duration.
type DispatchMetrics interface {
	// SetQueueDepth records the current number of pending tasks.
	SetQueueDepth(depth int)

	// RecordSubmit records whether a task was accepted onto the queue
	// or dropped because it was full.
	RecordSubmit(accepted bool)

	// ObserveTaskDuration records how long one deposit task took to
	// run, and whether it returned an error.
	ObserveTaskDuration(duration time.Duration, failed bool)
}

var newPrometheusDispatchMetrics func() DispatchMetrics

// RegisterDispatchMetricsConstructor is called by
// pkg/metrics/prometheus/dispatch.go during package initialization.
func RegisterDispatchMetricsConstructor(constructor func() DispatchMetrics) {
	newPrometheusDispatchMetrics = constructor
}

// NewDispatchMetrics returns a Prometheus-backed DispatchMetrics, or
// nil if metrics are disabled.
func NewDispatchMetrics() DispatchMetrics {
	if !IsEnabled() || newPrometheusDispatchMetrics == nil {
		return nil
	}
	return newPrometheusDispatchMetrics()
}
