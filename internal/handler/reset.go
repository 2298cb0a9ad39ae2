package handler

import (
	"net/http"

	"balance-guard/internal/metrics"
	"balance-guard/internal/service"

	"github.com/rs/zerolog"
)

// ResetHandler puts the balance back to its default.
type ResetHandler struct {
	resetter *service.Resetter
	metrics  *metrics.Registry
}

func NewResetHandler(r *service.Resetter, m *metrics.Registry) *ResetHandler {
	return &ResetHandler{resetter: r, metrics: m}
}

func (h *ResetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	balance, err := h.resetter.Reset(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.metrics.Resets.Inc()
	zerolog.Ctx(r.Context()).Info().Int64("balance", balance).Msg("balance reset")
	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}
