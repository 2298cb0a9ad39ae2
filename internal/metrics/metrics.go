package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for Charges.
const (
	OutcomeAuthorized   = "authorized"
	OutcomeUnauthorized = "unauthorized"
	OutcomeError        = "error"
)

type Registry struct {
	reg *prometheus.Registry

	Charges       *prometheus.CounterVec
	Attempts      *prometheus.HistogramVec
	Compensations prometheus.Counter
	Resets        prometheus.Counter
}

// NewRegistry builds a private registry so several instances can coexist in tests.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Charges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "balance_charges_total",
			Help: "Charge calls by strategy and outcome",
		}, []string{"strategy", "outcome"}),
		Attempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "balance_charge_attempts",
			Help:    "Optimistic attempts used per settled charge",
			Buckets: []float64{1, 2, 3, 5, 10, 25, 50, 100},
		}, []string{"strategy"}),
		Compensations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balance_compensations_total",
			Help: "Decrements reverted because the balance went negative",
		}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "balance_resets_total",
			Help: "Balance resets",
		}),
	}
	r.reg.MustRegister(
		r.Charges, r.Attempts, r.Compensations, r.Resets,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveCharge records a settled charge.
func (r *Registry) ObserveCharge(strategy string, authorized bool, attempts int, compensated bool) {
	outcome := OutcomeUnauthorized
	if authorized {
		outcome = OutcomeAuthorized
	}
	r.Charges.WithLabelValues(strategy, outcome).Inc()
	r.Attempts.WithLabelValues(strategy).Observe(float64(attempts))
	if compensated {
		r.Compensations.Inc()
	}
}

// ObserveChargeError records a charge that ended in an error.
func (r *Registry) ObserveChargeError(strategy string) {
	r.Charges.WithLabelValues(strategy, OutcomeError).Inc()
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
