package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client *redis.Client
}

type redisVersion int64

// NewRedisStore connects to Redis and returns a Store implementation.
// It implements Counter, Versioned and Transactional. A positive timeout bounds
// dialing and each read and write; zero keeps the client defaults.
func NewRedisStore(addr string, timeout time.Duration) (Store, error) {
	client := redis.NewClient(redisOptions(addr, timeout))
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &redisStore{client: client}, nil
}

func redisOptions(addr string, timeout time.Duration) *redis.Options {
	opt := &redis.Options{
		Addr: addr,
	}
	if timeout > 0 {
		opt.DialTimeout = timeout
		opt.ReadTimeout = timeout
		opt.WriteTimeout = timeout
	}
	return opt
}

// revKey holds a counter bumped by every write to key; it is the CAS version.
func revKey(key string) string {
	return key + ":rev"
}

// casLua sets KEYS[1] only if the revision in KEYS[2] still equals ARGV[2].
var casLua = redis.NewScript(`
local rev = tonumber(redis.call('GET', KEYS[2]) or '0')
if rev ~= tonumber(ARGV[2]) then
  return 0
end
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'KEEPTTL')
redis.call('INCR', KEYS[2])
return 1
`)

func (r *redisStore) Get(ctx context.Context, key string) (int64, error) {
	v, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *redisStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, value, ttl)
	pipe.Incr(ctx, revKey(key))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisStore) Close() error {
	return r.client.Close()
}

func (r *redisStore) AtomicAdd(ctx context.Context, key string, delta int64) (int64, error) {
	pipe := r.client.TxPipeline()
	res := pipe.IncrBy(ctx, key, delta)
	pipe.Incr(ctx, revKey(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return res.Val(), nil
}

func (r *redisStore) GetWithVersion(ctx context.Context, key string) (int64, Version, error) {
	vals, err := r.client.MGet(ctx, key, revKey(key)).Result()
	if err != nil {
		return 0, nil, err
	}
	if len(vals) != 2 {
		return 0, nil, fmt.Errorf("unexpected redis response: %v", vals)
	}
	if vals[0] == nil {
		return 0, nil, ErrNotFound
	}
	value, err := parseRedisInt(vals[0])
	if err != nil {
		return 0, nil, fmt.Errorf("parse %s: %w", key, err)
	}
	var rev int64
	if vals[1] != nil {
		if rev, err = parseRedisInt(vals[1]); err != nil {
			return 0, nil, fmt.Errorf("parse %s: %w", revKey(key), err)
		}
	}
	return value, redisVersion(rev), nil
}

func (r *redisStore) CompareAndSwap(ctx context.Context, key string, value int64, version Version) (bool, error) {
	v, ok := version.(redisVersion)
	if !ok {
		return false, fmt.Errorf("redis store: foreign version token %T", version)
	}
	res, err := casLua.Run(ctx, r.client, []string{key, revKey(key)}, value, int64(v)).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

func (r *redisStore) Watch(ctx context.Context, key string, fn func(tx Tx) error) error {
	return r.client.Watch(ctx, func(tx *redis.Tx) error {
		return fn(&redisTx{tx: tx})
	}, key)
}

type redisTx struct {
	tx *redis.Tx
}

func (t *redisTx) Get(ctx context.Context, key string) (int64, error) {
	v, err := t.tx.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (t *redisTx) Set(ctx context.Context, key string, value int64) (bool, error) {
	_, err := t.tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, value, redis.KeepTTL)
		pipe.Incr(ctx, revKey(key))
		return nil
	})
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (t *redisTx) Discard(ctx context.Context) error {
	return t.tx.Unwatch(ctx).Err()
}

func parseRedisInt(v interface{}) (int64, error) {
	switch x := v.(type) {
	case string:
		var parsed int64
		if _, err := fmt.Sscanf(x, "%d", &parsed); err != nil {
			return 0, err
		}
		return parsed, nil
	case int64:
		return x, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
