package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend names where a Cache keeps its entries.
type Backend string

const (
	RedisBackend  Backend = "redis"
	MemoryBackend Backend = "memory"
)

var (
	ErrCacheMiss      = errors.New("cache: key not found")
	ErrUnknownBackend = errors.New("cache: unknown backend")
)

// Cache is a small TTL key/value store. The membership subscriber keeps its
// event claims in one.
type Cache[V any] interface {
	// Get returns the value or ErrCacheMiss.
	Get(ctx context.Context, key string) (V, error)
	// Set stores value under key. A zero ttl never expires.
	Set(ctx context.Context, key string, value V, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value V, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	// Close releases what the cache owns. A shared redis client stays open.
	Close() error
}

// New builds a cache on backend. The redis backend borrows client, which the
// caller keeps ownership of.
func New[V any](backend Backend, client *redis.Client, opTimeout time.Duration) (Cache[V], error) {
	switch backend {
	case RedisBackend:
		if client == nil {
			return nil, fmt.Errorf("%w: redis backend needs a client", ErrUnknownBackend)
		}
		return NewRedisCacheWithClient[V](client, opTimeout), nil
	case MemoryBackend:
		return NewMemoryCache[V](), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}
