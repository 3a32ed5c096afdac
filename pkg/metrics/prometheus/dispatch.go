package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/eclipse-pass/depositsvc/pkg/metrics"
)

func init() {
	metrics.RegisterDispatchMetricsConstructor(func() metrics.DispatchMetrics { return newDispatchMetrics() })
}

type dispatchMetrics struct {
	queueDepth   prometheus.Gauge
	submits      *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

func newDispatchMetrics() *dispatchMetrics {
	reg := metrics.GetRegistry()
	return &dispatchMetrics{
		queueDepth: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "depositsvc_dispatch_queue_depth",
				Help: "Current number of deposit tasks pending in the dispatch pool.",
			},
		),
		submits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "depositsvc_dispatch_submits_total",
				Help: "Total number of deposit tasks submitted to the pool by outcome.",
			},
			[]string{"outcome"}, // "accepted", "dropped"
		),
		taskDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "depositsvc_dispatch_task_duration_seconds",
				Help:    "Duration of one deposit task run by outcome.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"}, // "success", "failed"
		),
	}
}

func (m *dispatchMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

func (m *dispatchMetrics) RecordSubmit(accepted bool) {
	if m == nil {
		return
	}
	outcome := "dropped"
	if accepted {
		outcome = "accepted"
	}
	m.submits.WithLabelValues(outcome).Inc()
}

func (m *dispatchMetrics) ObserveTaskDuration(duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if failed {
		outcome = "failed"
	}
	m.taskDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
