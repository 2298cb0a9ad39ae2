package repository

import (
	"context"
	"errors"
	"testing"
)

// exerciseStore checks the behaviour every backend shares.
func exerciseStore(t *testing.T, s Store, key string) {
	t.Helper()
	ctx := context.Background()

	v, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get absent key: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected absent key to read as 0, got %d", v)
	}

	if err := s.Set(ctx, key, 100, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err = s.Get(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != 100 {
		t.Fatalf("expected 100, got %d", v)
	}

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func exerciseCounter(t *testing.T, s Store, key string) {
	t.Helper()
	c, ok := s.(Counter)
	if !ok {
		t.Fatalf("%T does not implement Counter", s)
	}
	ctx := context.Background()
	if err := s.Set(ctx, key, 3, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	v, err := c.AtomicAdd(ctx, key, -5)
	if err != nil {
		t.Fatalf("atomic add: %v", err)
	}
	if v != -2 {
		t.Fatalf("expected -2 after decrement, got %d", v)
	}
	v, err = c.AtomicAdd(ctx, key, 5)
	if err != nil {
		t.Fatalf("atomic add: %v", err)
	}
	if v != 3 {
		t.Fatalf("expected 3 after compensation, got %d", v)
	}
}

func exerciseVersioned(t *testing.T, s Store, key string) {
	t.Helper()
	vs, ok := s.(Versioned)
	if !ok {
		t.Fatalf("%T does not implement Versioned", s)
	}
	ctx := context.Background()

	if _, _, err := vs.GetWithVersion(ctx, key+":missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Set(ctx, key, 100, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	bal, ver, err := vs.GetWithVersion(ctx, key)
	if err != nil {
		t.Fatalf("get with version: %v", err)
	}
	if bal != 100 {
		t.Fatalf("expected 100, got %d", bal)
	}

	// An intervening write invalidates the token.
	if err := s.Set(ctx, key, 100, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	swapped, err := vs.CompareAndSwap(ctx, key, 95, ver)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if swapped {
		t.Fatal("cas with stale version should fail")
	}

	_, ver, err = vs.GetWithVersion(ctx, key)
	if err != nil {
		t.Fatalf("get with version: %v", err)
	}
	swapped, err = vs.CompareAndSwap(ctx, key, 95, ver)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if !swapped {
		t.Fatal("cas with fresh version should succeed")
	}
	// The same token cannot be used twice.
	swapped, err = vs.CompareAndSwap(ctx, key, 90, ver)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if swapped {
		t.Fatal("cas with consumed version should fail")
	}

	v, _ := s.Get(ctx, key)
	if v != 95 {
		t.Fatalf("expected 95, got %d", v)
	}
}

func exerciseTransactional(t *testing.T, s Store, key string) {
	t.Helper()
	ts, ok := s.(Transactional)
	if !ok {
		t.Fatalf("%T does not implement Transactional", s)
	}
	ctx := context.Background()
	if err := s.Set(ctx, key, 100, 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Uncontended transaction commits.
	var committed bool
	err := ts.Watch(ctx, key, func(tx Tx) error {
		v, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		committed, err = tx.Set(ctx, key, v-5)
		return err
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !committed {
		t.Fatal("uncontended transaction should commit")
	}

	// A write between watch and exec aborts the transaction.
	err = ts.Watch(ctx, key, func(tx Tx) error {
		v, err := tx.Get(ctx, key)
		if err != nil {
			return err
		}
		if err := s.Set(ctx, key, 50, 0); err != nil {
			return err
		}
		committed, err = tx.Set(ctx, key, v-5)
		return err
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if committed {
		t.Fatal("transaction should abort after a concurrent write")
	}
	v, _ := s.Get(ctx, key)
	if v != 50 {
		t.Fatalf("expected concurrent write to win with 50, got %d", v)
	}

	// Discard releases the watch without writing.
	err = ts.Watch(ctx, key, func(tx Tx) error {
		return tx.Discard(ctx)
	})
	if err != nil {
		t.Fatalf("discard: %v", err)
	}
	v, _ = s.Get(ctx, key)
	if v != 50 {
		t.Fatalf("discard must not write, got %d", v)
	}
}
