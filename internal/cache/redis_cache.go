package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions holds both client‐tuning and operation‐level settings.
type RedisOptions struct {
	Addr            string
	Password        string
	DB              int
	PoolSize        int
	MinIdleConns    int
	MaxRetries      int           // retry count for transient errors
	MinRetryBackoff time.Duration // e.g. 8 * time.Millisecond
	MaxRetryBackoff time.Duration // e.g. 512 * time.Millisecond
	OpTimeout       time.Duration // per‐call timeout; defaulted if zero
}

const defaultOpTimeout = 50 * time.Millisecond

// NewRedisClient builds a client from opts. The subscriber and the cache share it.
func NewRedisClient(opts *RedisOptions) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            opts.Addr,
		Password:        opts.Password,
		DB:              opts.DB,
		PoolSize:        opts.PoolSize,
		MinIdleConns:    opts.MinIdleConns,
		MaxRetries:      opts.MaxRetries,
		MinRetryBackoff: opts.MinRetryBackoff,
		MaxRetryBackoff: opts.MaxRetryBackoff,
	})
}

// RedisCache stores JSON-encoded values. Every call runs under its own
// opTimeout so a slow Redis cannot stall the caller indefinitely.
type RedisCache[V any] struct {
	client     *redis.Client
	opTimeout  time.Duration
	ownsClient bool
}

// NewRedisCache constructs and owns its client.
func NewRedisCache[V any](opts *RedisOptions) *RedisCache[V] {
	c := NewRedisCacheWithClient[V](NewRedisClient(opts), opts.OpTimeout)
	c.ownsClient = true
	return c
}

// NewRedisCacheWithClient borrows client; Close leaves it open.
func NewRedisCacheWithClient[V any](client *redis.Client, opTimeout time.Duration) *RedisCache[V] {
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &RedisCache[V]{
		client:    client,
		opTimeout: opTimeout,
	}
}

func (r *RedisCache[V]) Close() error {
	if !r.ownsClient {
		return nil
	}
	return r.client.Close()
}

func (r *RedisCache[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, ErrCacheMiss
	} else if err != nil {
		return zero, err
	}
	var val V
	if err := json.Unmarshal(data, &val); err != nil {
		return zero, err
	}
	return val, nil
}

func (r *RedisCache[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	return r.client.Set(ctx, key, data, clampTTL(ttl)).Err()
}

func (r *RedisCache[V]) SetNX(ctx context.Context, key string, value V, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	return r.client.SetNX(ctx, key, data, clampTTL(ttl)).Result()
}

func (r *RedisCache[V]) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	return r.client.Del(ctx, key).Err()
}

// clampTTL maps a negative ttl to "no expiration". go-redis reads -1 as KEEPTTL.
func clampTTL(ttl time.Duration) time.Duration {
	if ttl < 0 {
		return 0
	}
	return ttl
}
