package adminapi

import (
	"context"
	"net/http"
	"time"

	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// HealthCheckTimeout bounds how long a readiness probe waits on the
// record store before reporting unhealthy.
const HealthCheckTimeout = 5 * time.Second

// HealthHandler serves unauthenticated liveness/readiness probes.
type HealthHandler struct {
	store store.RecordStore
}

func NewHealthHandler(rs store.RecordStore) *HealthHandler {
	return &HealthHandler{store: rs}
}

// Liveness handles GET /health. It always succeeds as long as the
// process is serving HTTP at all.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "depositsvc",
	}))
}

// Readiness handles GET /health/ready, checking that the record store
// backing every CRI operation in this service is reachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := h.store.Healthcheck(ctx)
	latency := time.Since(start)

	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"store_latency": latency.String(),
	}))
}
