package service

import (
	"context"

	"balance-guard/internal/repository"

	"github.com/rs/zerolog/log"
)

// DecrementCharger decrements first and re-increments when the result went
// negative. Between the two calls the stored balance is observably negative.
type DecrementCharger struct {
	store repository.Counter
	key   string
}

func NewDecrementCharger(s repository.Counter, key string) *DecrementCharger {
	return &DecrementCharger{store: s, key: key}
}

func (c *DecrementCharger) Strategy() Strategy { return StrategyDecrement }

// Charge makes a single attempt; store failures are returned, not retried.
func (c *DecrementCharger) Charge(ctx context.Context, amount int64) (Result, error) {
	if err := ValidateAmount(amount); err != nil {
		return Result{}, err
	}

	remaining, err := c.store.AtomicAdd(ctx, c.key, -amount)
	if err != nil {
		return Result{}, storeFailure(ctx, "decrement", err)
	}
	if Authorize(remaining+amount, amount) {
		return Result{RemainingBalance: remaining, Charges: amount, IsAuthorized: true, Attempts: 1}, nil
	}

	// The compensation must run even if the caller gave up in between.
	compCtx := context.WithoutCancel(ctx)
	restored, err := c.store.AtomicAdd(compCtx, c.key, amount)
	if err != nil {
		log.Error().Err(err).
			Str("key", c.key).
			Int64("amount", amount).
			Int64("observed", remaining).
			Msg("compensation failed, balance left decremented")
		return Result{}, storeFailure(compCtx, "compensate", err)
	}
	log.Debug().Str("key", c.key).Int64("amount", amount).Int64("restored", restored).Msg("charge compensated")
	return Result{RemainingBalance: restored, Attempts: 1, Compensated: true}, nil
}
