// Package loadgen fires concurrent charges at a chargeserver and checks that the
// balance was never overdrawn.
package loadgen

import (
	"context"
	"fmt"
	"sync"

	"balance-guard/internal/service"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Report counts the outcomes of one round.
type Report struct {
	Expected   int
	Authorized int
	Rejected   int
	Negative   int
}

// Options describes a load run.
type Options struct {
	Iterations int
	// Concurrency is the number of simultaneous charges per round.
	Concurrency int
	// Amount is sent with every charge; 0 uses the server default.
	Amount int64
	// ExpectAuthorized is how many charges of a round must succeed; 0 derives
	// it from the reset balance with ExpectedAuthorized.
	ExpectAuthorized int
}

// DefaultOptions fires one charge more than the default balance can cover.
func DefaultOptions() Options {
	return Options{Iterations: 100, Concurrency: 21}
}

// ExpectedAuthorized is how many of concurrency charges of amount fit in balance.
// A zero amount stands for the server's default charge.
func ExpectedAuthorized(balance, amount int64, concurrency int) int {
	if amount <= 0 {
		amount = service.DefaultChargeAmount(balance)
	}
	if amount <= 0 || balance <= 0 {
		return 0
	}
	n := balance / amount
	if n > int64(concurrency) {
		return concurrency
	}
	return int(n)
}

// Round resets the balance and fires o.Concurrency charges released at the same instant.
func Round(ctx context.Context, c *Client, o Options) (Report, error) {
	balance, err := c.Reset(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reset: %w", err)
	}

	var (
		mu  sync.Mutex
		rep = Report{Expected: o.ExpectAuthorized}
	)
	if rep.Expected <= 0 {
		rep.Expected = ExpectedAuthorized(balance, o.Amount, o.Concurrency)
	}
	start := make(chan struct{})
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.Concurrency; i++ {
		g.Go(func() error {
			<-start
			r, err := c.Charge(gctx, o.Amount)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if r.IsAuthorized {
				rep.Authorized++
			} else {
				rep.Rejected++
			}
			if r.RemainingBalance < 0 {
				rep.Negative++
			}
			return nil
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		return rep, err
	}

	if rep.Authorized != rep.Expected {
		return rep, fmt.Errorf("expected %d authorized charges, got %d", rep.Expected, rep.Authorized)
	}
	if rep.Negative != 0 {
		return rep, fmt.Errorf("expected no negative balances, got %d", rep.Negative)
	}
	return rep, nil
}

// Run repeats Round o.Iterations times and stops at the first violation. It
// returns the report of the last round it ran.
func Run(ctx context.Context, c *Client, o Options) (Report, error) {
	var rep Report
	for i := 0; i < o.Iterations; i++ {
		if i%10 == 0 {
			log.Info().Int("iteration", i).Msg("load round")
		}
		var err error
		if rep, err = Round(ctx, c, o); err != nil {
			return rep, fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	return rep, nil
}
