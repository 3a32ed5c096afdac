package metrics

import "time"

// AggregateMetrics observes pkg/aggregate.Aggregator.Tick (spec.md
// §4.10): how long a rollup sweep took and how many submissions it
// actually updated.
type AggregateMetrics interface {
	ObserveTick(duration time.Duration, examined, updated int)
}

var newPrometheusAggregateMetrics func() AggregateMetrics

// RegisterAggregateMetricsConstructor is called by
// pkg/metrics/prometheus/aggregate.go during package initialization.
func RegisterAggregateMetricsConstructor(constructor func() AggregateMetrics) {
	newPrometheusAggregateMetrics = constructor
}

// NewAggregateMetrics returns a Prometheus-backed AggregateMetrics, or
// nil if metrics are disabled.
func NewAggregateMetrics() AggregateMetrics {
	if !IsEnabled() || newPrometheusAggregateMetrics == nil {
		return nil
	}
	return newPrometheusAggregateMetrics()
}
