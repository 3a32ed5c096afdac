package adminapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eclipse-pass/depositsvc/internal/logger"
	"github.com/eclipse-pass/depositsvc/pkg/store"
)

// Config configures the admin router.
type Config struct {
	OperatorSecret string
	Issuer         string
}

// NewRouter builds the admin HTTP surface: unauthenticated health
// probes plus the bearer-auth-guarded operator API.
func NewRouter(rs store.RecordStore, cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := NewHealthHandler(rs)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	depositHandler := NewDepositHandler(rs)
	validator := NewTokenValidator(cfg.OperatorSecret, cfg.Issuer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireOperator(validator))
			r.Post("/deposits/{id}/remediate", depositHandler.Remediate)
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Info("adminapi: request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
		)
	})
}
