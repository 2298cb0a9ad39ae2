package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"balance-guard/internal/metrics"
	"balance-guard/internal/service"

	"github.com/rs/zerolog"
)

// StatusClientClosedRequest is logged when the client went away mid-charge.
const StatusClientClosedRequest = 499

// ChargeHandler debits the balance through the configured strategy.
type ChargeHandler struct {
	charger       service.Charger
	defaultAmount int64
	metrics       *metrics.Registry
}

func NewChargeHandler(c service.Charger, defaultAmount int64, m *metrics.Registry) *ChargeHandler {
	return &ChargeHandler{charger: c, defaultAmount: defaultAmount, metrics: m}
}

// ServeHTTP charges the default amount, or {"amount": n} when a body is sent.
func (h *ChargeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	amount := h.defaultAmount
	var payload struct {
		Amount *int64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, r, http.StatusBadRequest, "invalid_payload", "invalid payload")
		return
	}
	if payload.Amount != nil {
		amount = *payload.Amount
	}

	strategy := string(h.charger.Strategy())
	res, err := h.charger.Charge(r.Context(), amount)
	if err != nil {
		h.metrics.ObserveChargeError(strategy)
		writeServiceError(w, r, err)
		return
	}
	h.metrics.ObserveCharge(strategy, res.IsAuthorized, res.Attempts, res.Compensated)
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error":      code,
		"message":    message,
		"request_id": r.Header.Get("X-Request-ID"),
	})
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrKeyNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConcurrencyExhausted):
		status = http.StatusConflict
	case errors.Is(err, service.ErrCanceled) && errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, service.ErrCanceled):
		status = StatusClientClosedRequest
	case errors.Is(err, service.ErrStoreUnavailable), errors.Is(err, service.ErrCircuitBreakerOpen):
		status = http.StatusServiceUnavailable
	}
	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError && status != http.StatusGatewayTimeout {
		logger.Error().Err(err).Msg("request failed")
	} else {
		logger.Warn().Err(err).Msg("request rejected")
	}
	writeError(w, r, status, service.Code(err), err.Error())
}
