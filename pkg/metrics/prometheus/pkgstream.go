package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eclipse-pass/depositsvc/pkg/metrics"
)

func init() {
	metrics.RegisterPackageStreamMetricsConstructor(func() metrics.PackageStreamMetrics { return newPackageStreamMetrics() })
}

type packageStreamMetrics struct {
	entryBytes      *prometheus.HistogramVec
	packageDuration *prometheus.HistogramVec
	packageEntries  *prometheus.HistogramVec
}

func newPackageStreamMetrics() *packageStreamMetrics {
	reg := metrics.GetRegistry()
	return &packageStreamMetrics{
		entryBytes: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "depositsvc_pkgstream_entry_bytes",
				Help: "Distribution of archive entry sizes in bytes by archive format.",
				Buckets: []float64{
					4096, 65536, 1048576, 10485760, 104857600, 1073741824,
				},
			},
			[]string{"archive"},
		),
		packageDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "depositsvc_pkgstream_package_duration_seconds",
				Help:    "Total wall-clock time to assemble and stream one package, by outcome.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"archive", "outcome"}, // outcome: "success", "failed"
		),
		packageEntries: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "depositsvc_pkgstream_package_entries",
				Help:    "Distribution of entry counts per assembled package.",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
			[]string{"archive"},
		),
	}
}

func (m *packageStreamMetrics) ObserveEntry(archive string, bytes int64) {
	if m == nil {
		return
	}
	m.entryBytes.WithLabelValues(archive).Observe(float64(bytes))
}

func (m *packageStreamMetrics) ObservePackage(archive string, duration time.Duration, entries int, failed bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failed"
	}
	m.packageDuration.WithLabelValues(archive, outcome).Observe(duration.Seconds())
	m.packageEntries.WithLabelValues(archive).Observe(float64(entries))
}
