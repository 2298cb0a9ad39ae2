package service

import (
	"context"
	"time"

	"balance-guard/internal/repository"
)

// Resetter puts the balance key back to its configured default.
type Resetter struct {
	store   repository.Store
	key     string
	balance int64
	ttl     time.Duration
}

// NewResetter constructs a Resetter. A zero ttl leaves the key without expiry.
func NewResetter(s repository.Store, key string, balance int64, ttl time.Duration) *Resetter {
	return &Resetter{store: s, key: key, balance: balance, ttl: ttl}
}

// Reset overwrites the balance regardless of its prior value and returns the new one.
func (r *Resetter) Reset(ctx context.Context) (int64, error) {
	if err := r.store.Set(ctx, r.key, r.balance, r.ttl); err != nil {
		return 0, storeFailure(ctx, "reset", err)
	}
	return r.balance, nil
}
