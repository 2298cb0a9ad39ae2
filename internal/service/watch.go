package service

import (
	"context"
	"fmt"

	"balance-guard/internal/repository"

	"github.com/rs/zerolog/log"
)

// WatchCharger watches the balance key, reads it, and commits the debit in a
// transaction that aborts if the key changed meanwhile. Aborts are retried up to
// maxAttempts times.
type WatchCharger struct {
	store       repository.Transactional
	key         string
	maxAttempts int
}

func NewWatchCharger(s repository.Transactional, key string, maxAttempts int) *WatchCharger {
	if maxAttempts <= 0 {
		maxAttempts = DefaultWatchMaxAttempts
	}
	return &WatchCharger{store: s, key: key, maxAttempts: maxAttempts}
}

func (c *WatchCharger) Strategy() Strategy { return StrategyWatch }

func (c *WatchCharger) Charge(ctx context.Context, amount int64) (Result, error) {
	if err := ValidateAmount(amount); err != nil {
		return Result{}, err
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		res, settled, err := c.attempt(ctx, amount)
		if err != nil {
			return Result{}, storeFailure(ctx, "watch transaction", err)
		}
		if settled {
			res.Attempts = attempt
			return res, nil
		}
	}

	log.Warn().Str("key", c.key).Int("attempts", c.maxAttempts).Msg("watch charge exhausted its attempts")
	return Result{}, fmt.Errorf("%w: transaction aborted on %s after %d attempts",
		ErrConcurrencyExhausted, c.key, c.maxAttempts)
}

// attempt runs one watch/read/exec cycle. settled is false when the transaction aborted.
func (c *WatchCharger) attempt(ctx context.Context, amount int64) (res Result, settled bool, err error) {
	err = c.store.Watch(ctx, c.key, func(tx repository.Tx) error {
		balance, err := tx.Get(ctx, c.key)
		if err != nil {
			return err
		}
		if !Authorize(balance, amount) {
			res, settled = Result{RemainingBalance: balance}, true
			return tx.Discard(ctx)
		}

		newBalance := balance - amount
		committed, err := tx.Set(ctx, c.key, newBalance)
		if err != nil {
			return err
		}
		if committed {
			res, settled = Result{RemainingBalance: newBalance, Charges: amount, IsAuthorized: true}, true
		}
		return nil
	})
	return res, settled, err
}
