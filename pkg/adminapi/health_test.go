package adminapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eclipse-pass/depositsvc/pkg/adminapi"
	"github.com/eclipse-pass/depositsvc/pkg/store/memstore"
)

func TestHealthHandler_LivenessAlwaysOK(t *testing.T) {
	h := adminapi.NewHealthHandler(memstore.New())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Liveness(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_ReadinessOKWhenStoreHealthy(t *testing.T) {
	h := adminapi.NewHealthHandler(memstore.New())

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	h.Readiness(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthHandler_ReadinessUnavailableWhenContextCancelled(t *testing.T) {
	h := adminapi.NewHealthHandler(memstore.New())

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	cancelledCtx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(cancelledCtx)

	rec := httptest.NewRecorder()
	h.Readiness(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
