// Package metrics defines the Prometheus-backed instrumentation
// interfaces for the deposit pipeline (CRI attempts/conflicts, dispatch
// queue depth, status-poll outcomes, aggregator tick duration,
// package-stream byte/entry counts). Each interface follows the
// teacher's plugin-constructor pattern: a NewXMetrics() factory returns
// nil when metrics are disabled, and every consumer checks for nil
// before recording, so instrumentation is zero-overhead when off.
//
// The concrete Prometheus implementations live in pkg/metrics/prometheus
// and register their constructors here via RegisterXConstructor calls
// in that package's init(), which avoids this package importing
// prometheus/client_golang's registration machinery directly while
// keeping a single IsEnabled/GetRegistry gate for all of them.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	enabled  bool
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide metrics registry. Safe to call
// once at startup; subsequent calls are no-ops. Must be called before
// any NewXMetrics() factory if metrics collection is wanted — those
// factories check IsEnabled and return nil otherwise.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()
	if registry != nil {
		return
	}
	registry = prometheus.NewRegistry()
	enabled = true
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// GetRegistry returns the process-wide registerer. Panics if called
// before InitRegistry — every NewXMetrics() factory guards this with
// IsEnabled first.
func GetRegistry() prometheus.Registerer {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		panic("metrics: GetRegistry called before InitRegistry")
	}
	return registry
}

// Handler returns the HTTP handler that serves the registry's current
// samples, suitable for mounting at /metrics. Returns nil if metrics
// are disabled.
func Handler() http.Handler {
	mu.RLock()
	defer mu.RUnlock()
	if registry == nil {
		return nil
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
