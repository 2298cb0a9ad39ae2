package service

import (
	"context"
	"fmt"

	"balance-guard/internal/repository"

	"github.com/rs/zerolog/log"
)

// CASCharger reads a versioned snapshot and writes conditionally on the version,
// retrying lost races up to maxAttempts times.
type CASCharger struct {
	store       repository.Versioned
	key         string
	maxAttempts int
}

func NewCASCharger(s repository.Versioned, key string, maxAttempts int) *CASCharger {
	if maxAttempts <= 0 {
		maxAttempts = DefaultCASMaxAttempts
	}
	return &CASCharger{store: s, key: key, maxAttempts: maxAttempts}
}

func (c *CASCharger) Strategy() Strategy { return StrategyCAS }

func (c *CASCharger) Charge(ctx context.Context, amount int64) (Result, error) {
	if err := ValidateAmount(amount); err != nil {
		return Result{}, err
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		balance, version, err := c.store.GetWithVersion(ctx, c.key)
		if err != nil {
			return Result{}, storeFailure(ctx, "get with version", err)
		}
		// Re-reading will not top up the balance, so no retry here.
		if !Authorize(balance, amount) {
			return Result{RemainingBalance: balance, Attempts: attempt}, nil
		}

		newBalance := balance - amount
		swapped, err := c.store.CompareAndSwap(ctx, c.key, newBalance, version)
		if err != nil {
			return Result{}, storeFailure(ctx, "compare and swap", err)
		}
		if swapped {
			return Result{RemainingBalance: newBalance, Charges: amount, IsAuthorized: true, Attempts: attempt}, nil
		}
	}

	log.Warn().Str("key", c.key).Int("attempts", c.maxAttempts).Msg("cas charge exhausted its attempts")
	return Result{}, fmt.Errorf("%w: compare and swap conflict on %s after %d attempts",
		ErrConcurrencyExhausted, c.key, c.maxAttempts)
}
