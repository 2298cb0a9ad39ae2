package service

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker
type CircuitState string

const (
	StateClosed   CircuitState = "closed"
	StateOpen     CircuitState = "open"
	StateHalfOpen CircuitState = "half-open"
)

// ErrCircuitBreakerOpen is returned without touching the store while the breaker is open.
var ErrCircuitBreakerOpen = NewError("circuit_breaker_open", "circuit breaker is open")

// CircuitBreaker stops calling an unreachable store for a cool-down period.
// Only errors matching ErrStoreUnavailable count as failures; an unauthorized
// charge or exhausted retries still prove the store is reachable.
type CircuitBreaker struct {
	mu               sync.RWMutex
	state            CircuitState
	failureCount     int
	successCount     int
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	lastFailureTime  time.Time
	maxProbes        int
	probes           int
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(failureThreshold, successThreshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		maxProbes:        1,
	}
}

// Call executes fn if the circuit allows it and returns fn's error unchanged.
func (cb *CircuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	if cb.state == StateOpen {
		if time.Since(cb.lastFailureTime) > cb.timeout {
			cb.state = StateHalfOpen
			cb.successCount = 0
			cb.probes = 0
		} else {
			cb.mu.Unlock()
			return ErrCircuitBreakerOpen
		}
	}
	probing := cb.state == StateHalfOpen
	if probing {
		if cb.probes >= cb.maxProbes {
			cb.mu.Unlock()
			return ErrCircuitBreakerOpen
		}
		cb.probes++
	}
	cb.mu.Unlock()

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if probing {
		cb.probes--
	}
	switch {
	case errors.Is(err, ErrCanceled):
		// the caller went away; this says nothing about the store
	case errors.Is(err, ErrStoreUnavailable):
		cb.recordFailure()
	default:
		cb.recordSuccess()
	}
	return err
}

func (cb *CircuitBreaker) recordFailure() {
	cb.failureCount++
	cb.lastFailureTime = time.Now()
	cb.successCount = 0

	if cb.state == StateHalfOpen || cb.failureCount >= cb.failureThreshold {
		cb.state = StateOpen
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.failureCount = 0
	cb.successCount++

	if cb.state == StateHalfOpen && cb.successCount >= cb.successThreshold {
		cb.state = StateClosed
		cb.successCount = 0
	}
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetMetrics returns circuit breaker metrics
func (cb *CircuitBreaker) GetMetrics() CircuitMetrics {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return CircuitMetrics{
		State:        cb.state,
		FailureCount: cb.failureCount,
		SuccessCount: cb.successCount,
	}
}

// Reset closes the circuit.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
	cb.probes = 0
}

// CircuitMetrics contains circuit breaker metrics
type CircuitMetrics struct {
	State        CircuitState `json:"state"`
	FailureCount int          `json:"failure_count"`
	SuccessCount int          `json:"success_count"`
}

type guardedCharger struct {
	Charger
	cb *CircuitBreaker
}

// WithCircuitBreaker wraps c so that charges fail fast with ErrCircuitBreakerOpen
// while the store is considered down.
func WithCircuitBreaker(c Charger, cb *CircuitBreaker) Charger {
	return &guardedCharger{Charger: c, cb: cb}
}

func (g *guardedCharger) Charge(ctx context.Context, amount int64) (Result, error) {
	var res Result
	err := g.cb.Call(func() error {
		var err error
		res, err = g.Charger.Charge(ctx, amount)
		return err
	})
	return res, err
}
