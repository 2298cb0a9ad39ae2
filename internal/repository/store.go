package repository

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by GetWithVersion when the key does not exist.
var ErrNotFound = errors.New("key not found")

// Version is an opaque token returned by GetWithVersion. Any write to the key
// invalidates it. Tokens are only meaningful to the Store that issued them.
type Version interface{}

// Store is the minimal surface every backend provides. Implementations must be
// concurrency-safe; all serialization of writes to a key is delegated to the
// backend itself.
type Store interface {
	// Get returns the current value of key, or 0 when the key is absent.
	Get(ctx context.Context, key string) (int64, error)

	// Set overwrites key with value. A zero ttl means the key never expires.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error

	// Ping checks connectivity to the backend.
	Ping(ctx context.Context) error

	Close() error
}

// Counter is implemented by backends with a native signed atomic increment.
type Counter interface {
	Store

	// AtomicAdd applies delta to key server-side and returns the resulting value.
	// An absent key is treated as 0.
	AtomicAdd(ctx context.Context, key string, delta int64) (int64, error)
}

// Versioned is implemented by backends with fetch-with-version and conditional write.
type Versioned interface {
	Store

	// GetWithVersion returns the value and a version token, or ErrNotFound.
	GetWithVersion(ctx context.Context, key string) (int64, Version, error)

	// CompareAndSwap writes value only if the stored version still matches.
	// A mismatch is reported as (false, nil), never as an error.
	CompareAndSwap(ctx context.Context, key string, value int64, version Version) (bool, error)
}

// Transactional is implemented by backends with optimistic watch/transaction support.
type Transactional interface {
	Store

	// Watch begins a watch on key and runs fn. The watch is released when fn returns.
	Watch(ctx context.Context, key string, fn func(tx Tx) error) error
}

// Tx is the view of a store inside a Watch callback.
type Tx interface {
	// Get is a plain read of key.
	Get(ctx context.Context, key string) (int64, error)

	// Set writes value as a transaction that aborts if the watched key changed
	// since the watch began. It returns false on abort.
	Set(ctx context.Context, key string, value int64) (bool, error)

	// Discard releases the watch without writing.
	Discard(ctx context.Context) error
}
