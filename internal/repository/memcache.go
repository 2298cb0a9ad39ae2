package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheMaxExpiration is the longest relative expiration memcached accepts (30 days).
// Larger values are interpreted by the server as unix timestamps.
const MemcacheMaxExpiration = 30 * 24 * time.Hour

type memcacheStore struct {
	client *memcache.Client
}

// memcacheVersion keeps the item returned by gets; its cas id is unexported.
type memcacheVersion struct {
	item *memcache.Item
}

// NewMemcacheStore connects to memcached and returns a Store implementation.
// It implements Versioned only: memcached incr/decr are unsigned and clamp at
// zero, so it cannot serve as a Counter.
func NewMemcacheStore(addr string, timeout time.Duration) (Store, error) {
	client := memcache.New(addr)
	if timeout > 0 {
		client.Timeout = timeout
	}
	if err := client.Ping(); err != nil {
		return nil, fmt.Errorf("memcached ping: %w", err)
	}
	return &memcacheStore{client: client}, nil
}

func (m *memcacheStore) Get(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return parseMemcacheValue(key, item.Value)
}

func (m *memcacheStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl > MemcacheMaxExpiration {
		ttl = MemcacheMaxExpiration
	}
	return m.client.Set(&memcache.Item{
		Key:        key,
		Value:      []byte(strconv.FormatInt(value, 10)),
		Expiration: int32(ttl / time.Second),
	})
}

func (m *memcacheStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.client.Ping()
}

// Close is a no-op: the client pools connections and closes idle ones itself.
func (m *memcacheStore) Close() error {
	return nil
}

func (m *memcacheStore) GetWithVersion(ctx context.Context, key string) (int64, Version, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, err
	}
	value, err := parseMemcacheValue(key, item.Value)
	if err != nil {
		return 0, nil, err
	}
	return value, memcacheVersion{item: item}, nil
}

func (m *memcacheStore) CompareAndSwap(ctx context.Context, key string, value int64, version Version) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	v, ok := version.(memcacheVersion)
	if !ok || v.item == nil {
		return false, fmt.Errorf("memcache store: foreign version token %T", version)
	}
	if v.item.Key != key {
		return false, fmt.Errorf("memcache store: version token belongs to %q", v.item.Key)
	}
	item := *v.item
	item.Value = []byte(strconv.FormatInt(value, 10))
	err := m.client.CompareAndSwap(&item)
	switch {
	case err == nil:
		return true, nil
	// NOT_FOUND (reported as a cache miss) means the item was evicted or
	// deleted after gets; the caller re-reads and sees the key is gone.
	case errors.Is(err, memcache.ErrCASConflict),
		errors.Is(err, memcache.ErrNotStored),
		errors.Is(err, memcache.ErrCacheMiss):
		return false, nil
	default:
		return false, err
	}
}

func parseMemcacheValue(key string, raw []byte) (int64, error) {
	v, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
