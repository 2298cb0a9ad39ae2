package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type memEntry struct {
	value   int64
	version uint64
	expires time.Time
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && !now.Before(e.expires)
}

type memVersion uint64

type memoryStore struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	seq     uint64
}

// NewMemoryStore returns an in-memory Store for local development/testing.
// It implements Counter, Versioned and Transactional.
func NewMemoryStore() Store {
	return &memoryStore{
		entries: make(map[string]*memEntry),
	}
}

// lookup returns the live entry for key. Callers must hold m.mu.
func (m *memoryStore) lookup(key string) (*memEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if e.expired(time.Now()) {
		delete(m.entries, key)
		return nil, false
	}
	return e, true
}

// versionOf returns the current version of key, 0 when absent. Callers must hold m.mu.
func (m *memoryStore) versionOf(key string) uint64 {
	if e, ok := m.lookup(key); ok {
		return e.version
	}
	return 0
}

// write stores value under key, bumping the version. Callers must hold m.mu.
func (m *memoryStore) write(key string, value int64) {
	m.seq++
	e, ok := m.lookup(key)
	if !ok {
		e = &memEntry{}
		m.entries[key] = e
	}
	e.value = value
	e.version = m.seq
}

func (m *memoryStore) Get(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.lookup(key); ok {
		return e.value, nil
	}
	return 0, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(key, value)
	e := m.entries[key]
	e.expires = time.Time{}
	if ttl > 0 {
		e.expires = time.Now().Add(ttl)
	}
	return nil
}

func (m *memoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *memoryStore) Close() error {
	return nil
}

func (m *memoryStore) AtomicAdd(ctx context.Context, key string, delta int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var cur int64
	if e, ok := m.lookup(key); ok {
		cur = e.value
	}
	m.write(key, cur+delta)
	return cur + delta, nil
}

func (m *memoryStore) GetWithVersion(ctx context.Context, key string) (int64, Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return 0, nil, ErrNotFound
	}
	return e.value, memVersion(e.version), nil
}

func (m *memoryStore) CompareAndSwap(ctx context.Context, key string, value int64, version Version) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, ok := version.(memVersion)
	if !ok {
		return false, fmt.Errorf("memory store: foreign version token %T", version)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok || e.version != uint64(v) {
		return false, nil
	}
	m.write(key, value)
	return true, nil
}

func (m *memoryStore) Watch(ctx context.Context, key string, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	watched := m.versionOf(key)
	m.mu.Unlock()

	tx := &memTx{store: m, key: key, watched: watched}
	defer tx.release()
	return fn(tx)
}

var errTxClosed = errors.New("transaction already finished")

// memTx emulates a WATCH by remembering the key version seen when the watch began.
type memTx struct {
	store   *memoryStore
	key     string
	watched uint64

	mu   sync.Mutex
	done bool
}

func (t *memTx) release() {
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

func (t *memTx) Get(ctx context.Context, key string) (int64, error) {
	return t.store.Get(ctx, key)
}

func (t *memTx) Set(ctx context.Context, key string, value int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return false, errTxClosed
	}
	// EXEC consumes the watch whatever the outcome.
	t.done = true

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	if t.store.versionOf(t.key) != t.watched {
		return false, nil
	}
	t.store.write(key, value)
	return true, nil
}

func (t *memTx) Discard(ctx context.Context) error {
	t.release()
	return nil
}
