package metrics

// CRIMetrics observes pkg/cri.PerformCritical's read-modify-write loop
// (spec.md §4.2). Implementations are passed into cri.Options.Metrics;
// a nil CRIMetrics (the zero value) means no instrumentation.
type CRIMetrics interface {
	// ObserveAttempt records one read-modify-write attempt for the
	// given entity kind, including retries.
	ObserveAttempt(kind string)

	// ObserveConflict records a version-conflict retry for kind.
	ObserveConflict(kind string)

	// ObserveOutcome records the terminal outcome of a PerformCritical
	// call: attempts is the total number of attempts made, success is
	// whether the postcondition held on the final read-back.
	ObserveOutcome(kind string, attempts int, success bool)
}

// newPrometheusCRIMetrics is supplied by pkg/metrics/prometheus's
// init(), breaking the import cycle that would exist if this package
// imported the prometheus client libraries directly for every factory.
var newPrometheusCRIMetrics func() CRIMetrics

// RegisterCRIMetricsConstructor is called by
// pkg/metrics/prometheus/cri.go during package initialization.
func RegisterCRIMetricsConstructor(constructor func() CRIMetrics) {
	newPrometheusCRIMetrics = constructor
}

// NewCRIMetrics returns a Prometheus-backed CRIMetrics, or nil if
// metrics are disabled.
func NewCRIMetrics() CRIMetrics {
	if !IsEnabled() || newPrometheusCRIMetrics == nil {
		return nil
	}
	return newPrometheusCRIMetrics()
}
