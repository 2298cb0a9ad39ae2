package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newMiniredisStore(tb testing.TB) (*miniredis.Miniredis, Store) {
	tb.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		tb.Fatalf("miniredis run failed: %v", err)
	}
	tb.Cleanup(mr.Close)

	store, err := NewRedisStore(mr.Addr(), time.Second)
	if err != nil {
		tb.Fatalf("failed to create redis store: %v", err)
	}
	tb.Cleanup(func() { _ = store.Close() })
	return mr, store
}

func TestRedisStore(t *testing.T) {
	_, store := newMiniredisStore(t)
	exerciseStore(t, store, "account1/balance")
}

func TestRedisStoreCounter(t *testing.T) {
	_, store := newMiniredisStore(t)
	exerciseCounter(t, store, "account1/balance")
}

func TestRedisStoreVersioned(t *testing.T) {
	_, store := newMiniredisStore(t)
	exerciseVersioned(t, store, "account1/balance")
}

func TestRedisStoreTransactional(t *testing.T) {
	_, store := newMiniredisStore(t)
	exerciseTransactional(t, store, "account1/balance")
}

// TestRedisStoreWritesBumpRevision checks every write path invalidates CAS tokens.
func TestRedisStoreWritesBumpRevision(t *testing.T) {
	mr, store := newMiniredisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", 100, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	_, ver, err := store.(Versioned).GetWithVersion(ctx, "k")
	if err != nil {
		t.Fatalf("get with version: %v", err)
	}
	if _, err := store.(Counter).AtomicAdd(ctx, "k", -5); err != nil {
		t.Fatalf("atomic add: %v", err)
	}
	ok, err := store.(Versioned).CompareAndSwap(ctx, "k", 1, ver)
	if err != nil {
		t.Fatalf("cas: %v", err)
	}
	if ok {
		t.Fatal("cas must fail after an atomic add")
	}

	got, err := mr.Get("k")
	if err != nil {
		t.Fatalf("miniredis get: %v", err)
	}
	if got != "95" {
		t.Fatalf("expected stored value 95, got %q", got)
	}
}

func TestRedisStoreSetTTL(t *testing.T) {
	mr, store := newMiniredisStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "k", 100, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Fatalf("expected ttl 1m, got %v", ttl)
	}

	// CAS keeps the expiry.
	_, ver, _ := store.(Versioned).GetWithVersion(ctx, "k")
	if ok, err := store.(Versioned).CompareAndSwap(ctx, "k", 95, ver); err != nil || !ok {
		t.Fatalf("cas: ok=%v err=%v", ok, err)
	}
	if ttl := mr.TTL("k"); ttl != time.Minute {
		t.Fatalf("expected ttl kept at 1m after cas, got %v", ttl)
	}

	mr.FastForward(2 * time.Minute)
	v, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != 0 {
		t.Fatalf("expected expired key to read as 0, got %d", v)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, store := newMiniredisStore(t)
	mr.Close()

	if _, err := store.Get(context.Background(), "k"); err == nil {
		t.Fatal("expected error when redis is down")
	}
}

func TestRedisOptionsTimeout(t *testing.T) {
	opt := redisOptions("localhost:6379", 2*time.Second)
	if opt.DialTimeout != 2*time.Second || opt.ReadTimeout != 2*time.Second || opt.WriteTimeout != 2*time.Second {
		t.Fatalf("expected 2s timeouts, got dial=%s read=%s write=%s", opt.DialTimeout, opt.ReadTimeout, opt.WriteTimeout)
	}

	opt = redisOptions("localhost:6379", 0)
	if opt.DialTimeout != 0 || opt.ReadTimeout != 0 || opt.WriteTimeout != 0 {
		t.Fatal("zero timeout must leave client defaults in place")
	}
}

// BenchmarkRedisAtomicAdd benchmarks the INCRBY path.
func BenchmarkRedisAtomicAdd(b *testing.B) {
	_, store := newMiniredisStore(b)
	c := store.(Counter)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.AtomicAdd(ctx, "bench:key", -1)
	}
}

// BenchmarkRedisCompareAndSwap benchmarks the read + Lua CAS round trip.
func BenchmarkRedisCompareAndSwap(b *testing.B) {
	_, store := newMiniredisStore(b)
	vs := store.(Versioned)
	ctx := context.Background()
	store.Set(ctx, "bench:key", int64(b.N), 0)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, ver, err := vs.GetWithVersion(ctx, "bench:key")
		if err != nil {
			b.Fatal(err)
		}
		vs.CompareAndSwap(ctx, "bench:key", v-1, ver)
	}
}
