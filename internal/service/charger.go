package service

import (
	"context"
	"fmt"

	"balance-guard/internal/repository"
)

// Strategy enumerates the supported charge strategies.
type Strategy string

const (
	StrategyDecrement Strategy = "decrement"
	StrategyCAS       Strategy = "cas"
	StrategyWatch     Strategy = "watch"
)

const (
	DefaultCASMaxAttempts   = 10
	DefaultWatchMaxAttempts = 100
)

// Result is the outcome of a charge call. An unauthorized charge is a normal
// result, not an error.
type Result struct {
	RemainingBalance int64 `json:"remainingBalance"`
	Charges          int64 `json:"charges"`
	IsAuthorized     bool  `json:"isAuthorized"`

	// Attempts is the number of optimistic attempts used (1 for decrement).
	Attempts int `json:"-"`
	// Compensated is set when a decrement had to be reverted.
	Compensated bool `json:"-"`
}

// Charger debits a single balance key if it is sufficient.
// Implementations are safe for concurrent use.
type Charger interface {
	Charge(ctx context.Context, amount int64) (Result, error)
	Strategy() Strategy
}

// Options tunes the retrying strategies. Zero values mean defaults.
type Options struct {
	CASMaxAttempts   int
	WatchMaxAttempts int
}

// New builds the charger for strategy over store. It fails when the store lacks
// the primitive the strategy needs.
func New(strategy Strategy, store repository.Store, key string, opts Options) (Charger, error) {
	switch strategy {
	case StrategyDecrement:
		c, ok := store.(repository.Counter)
		if !ok {
			return nil, fmt.Errorf("strategy %s needs atomic add, not supported by %T", strategy, store)
		}
		return NewDecrementCharger(c, key), nil
	case StrategyCAS:
		v, ok := store.(repository.Versioned)
		if !ok {
			return nil, fmt.Errorf("strategy %s needs compare-and-swap, not supported by %T", strategy, store)
		}
		return NewCASCharger(v, key, opts.CASMaxAttempts), nil
	case StrategyWatch:
		t, ok := store.(repository.Transactional)
		if !ok {
			return nil, fmt.Errorf("strategy %s needs watch/transaction, not supported by %T", strategy, store)
		}
		return NewWatchCharger(t, key, opts.WatchMaxAttempts), nil
	default:
		return nil, fmt.Errorf("unknown strategy %s", strategy)
	}
}
