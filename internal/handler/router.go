package handler

import (
	"net/http"

	"balance-guard/internal/metrics"
	"balance-guard/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers the balance endpoints behind the request middleware chain.
func NewRouter(charge *ChargeHandler, reset *ResetHandler, health *HealthHandler, m *metrics.Registry) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.RequestSizeLimit(middleware.MaxRequestSize))

	r.Method(http.MethodPost, "/charge", charge)
	r.Method(http.MethodPost, "/reset", reset)
	r.Get("/health", health.Liveness)
	r.Get("/ready", health.Readiness)
	r.Get("/status", health.Status)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	return r
}
