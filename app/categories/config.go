package categories

import (
	"errors"
	"time"

	"github.com/joefazee/categorias/internal/logger"
)

// RemovePolicy decides what Remove does with a category that still counts posts.
type RemovePolicy string

const (
	RemoveRefuse  RemovePolicy = "refuse"
	RemoveCascade RemovePolicy = "cascade"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

const DefaultSlugMaxAttempts = 100

var (
	ErrInvalidRemovePolicy   = errors.New("remove policy must be refuse or cascade")
	ErrInvalidSlugAttempts   = errors.New("slug attempts must be between 1 and 10000")
	ErrInvalidBackend        = errors.New("backend must be postgres or memory")
	ErrMissingDatabaseHandle = errors.New("postgres backend requires a database handle")
)

// Config represents the configuration for the categories module
type Config struct {
	RemovePolicy    RemovePolicy `env:"CATEGORIES_REMOVE_POLICY" env-default:"refuse"`
	SlugMaxAttempts int          `env:"CATEGORIES_SLUG_MAX_ATTEMPTS" env-default:"100"`
	Backend         string       `env:"CATEGORIES_BACKEND" env-default:"postgres"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		RemovePolicy:    RemoveRefuse,
		SlugMaxAttempts: DefaultSlugMaxAttempts,
		Backend:         BackendPostgres,
	}
}

func (c *Config) Validate() error {
	type validation struct {
		ok  bool
		err error
	}

	checks := []validation{
		{c.RemovePolicy == RemoveRefuse || c.RemovePolicy == RemoveCascade, ErrInvalidRemovePolicy},
		{c.SlugMaxAttempts > 0 && c.SlugMaxAttempts <= 10000, ErrInvalidSlugAttempts},
		{c.Backend == BackendPostgres || c.Backend == BackendMemory, ErrInvalidBackend},
	}

	for _, check := range checks {
		if !check.ok {
			return check.err
		}
	}
	return nil
}

type options struct {
	now    func() time.Time
	logger logger.Logger
}

// Option customises a service or repository.
type Option func(*options)

// WithClock replaces time.Now as the source of created_at/updated_at.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithLogger sets the logger used by the service.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, logger: logger.NewNullLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// stamp normalises a clock reading to what Postgres can store.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
