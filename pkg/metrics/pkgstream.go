package metrics

import "time"

// PackageStreamMetrics observes pkg/pkgstream's archive assembly
// (spec.md §4.4): bytes and entries written per package, and total
// assembly wall-clock time.
type PackageStreamMetrics interface {
	// ObserveEntry records one archive entry's size.
	ObserveEntry(archive string, bytes int64)

	// ObservePackage records one completed (or failed) package
	// assembly's total duration and entry count.
	ObservePackage(archive string, duration time.Duration, entries int, failed bool)
}

var newPrometheusPackageStreamMetrics func() PackageStreamMetrics

// RegisterPackageStreamMetricsConstructor is called by
// pkg/metrics/prometheus/pkgstream.go during package initialization.
func RegisterPackageStreamMetricsConstructor(constructor func() PackageStreamMetrics) {
	newPrometheusPackageStreamMetrics = constructor
}

// NewPackageStreamMetrics returns a Prometheus-backed
// PackageStreamMetrics, or nil if metrics are disabled.
func NewPackageStreamMetrics() PackageStreamMetrics {
	if !IsEnabled() || newPrometheusPackageStreamMetrics == nil {
		return nil
	}
	return newPrometheusPackageStreamMetrics()
}
