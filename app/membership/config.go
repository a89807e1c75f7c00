package membership

import (
	"errors"
	"time"

	"github.com/joefazee/categorias/internal/cache"
)

const (
	DefaultChannel   = "categorias:membership"
	DefaultDedupeTTL = 24 * time.Hour

	claimPrefix = "categorias:event:"
)

var (
	ErrMissingChannel    = errors.New("membership: events channel is required")
	ErrInvalidDedupeTTL  = errors.New("membership: dedupe ttl must be positive")
	ErrInvalidClaimStore = errors.New("membership: claim store must be redis or memory")
)

// Config holds the Redis connection and channel the subscriber listens on.
// An empty RedisAddr disables the subscriber.
type Config struct {
	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" env-default:"0" validate:"gte=0"`
	Channel       string        `env:"CATEGORIES_EVENTS_CHANNEL" env-default:"categorias:membership"`
	DedupeTTL     time.Duration `env:"CATEGORIES_EVENT_DEDUPE_TTL" env-default:"24h"`
	// ClaimStore keeps event claims in Redis, shared by every replica, or
	// in process for a single instance.
	ClaimStore cache.Backend `env:"CATEGORIES_CLAIM_STORE" env-default:"redis"`
}

func DefaultConfig() Config {
	return Config{
		Channel:    DefaultChannel,
		DedupeTTL:  DefaultDedupeTTL,
		ClaimStore: cache.RedisBackend,
	}
}

func (c Config) Enabled() bool {
	return c.RedisAddr != ""
}

func (c Config) Validate() error {
	if c.Channel == "" {
		return ErrMissingChannel
	}
	if c.DedupeTTL <= 0 {
		return ErrInvalidDedupeTTL
	}
	if c.ClaimStore != cache.RedisBackend && c.ClaimStore != cache.MemoryBackend {
		return ErrInvalidClaimStore
	}
	return nil
}

// RedisOptions adapts the config to the cache package's client settings.
func (c Config) RedisOptions() *cache.RedisOptions {
	return &cache.RedisOptions{
		Addr:            c.RedisAddr,
		Password:        c.RedisPassword,
		DB:              c.RedisDB,
		PoolSize:        10,
		MinIdleConns:    1,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
		OpTimeout:       500 * time.Millisecond,
	}
}
