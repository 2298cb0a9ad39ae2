package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"balance-guard/internal/repository"
	"balance-guard/internal/service"
)

// HealthHandler handles health check requests.
type HealthHandler struct {
	Store    repository.Store
	Breaker  *service.CircuitBreaker
	Backend  string
	Strategy string
}

// LivenessResponse represents liveness probe response.
type LivenessResponse struct {
	Status string `json:"status"`
	Time   int64  `json:"timestamp"`
}

// ReadinessResponse represents readiness probe response.
type ReadinessResponse struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Liveness returns 200 if the service is running.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(LivenessResponse{
		Status: "alive",
		Time:   time.Now().Unix(),
	})
}

// Readiness returns 200 only while the store answers a ping.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Second)
	defer cancel()

	resp := ReadinessResponse{Status: "ready", Store: "ok"}
	status := http.StatusOK
	if err := h.Store.Ping(ctx); err != nil {
		resp = ReadinessResponse{Status: "not_ready", Store: err.Error()}
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Status returns detailed status information.
func (h *HealthHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]interface{}{
		"service":   "balance-guard",
		"version":   "1.0.0",
		"backend":   h.Backend,
		"strategy":  h.Strategy,
		"timestamp": time.Now().Unix(),
		"uptime":    time.Since(startTime).Seconds(),
	}
	if h.Breaker != nil {
		status["circuit"] = h.Breaker.GetMetrics()
	}
	json.NewEncoder(w).Encode(status)
}

var startTime = time.Now()
