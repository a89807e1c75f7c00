package app

import (
	"net"

	"github.com/joefazee/categorias/app/categories"
	"github.com/joefazee/categorias/app/database"
	"github.com/joefazee/categorias/app/membership"
	"github.com/joefazee/categorias/internal/logger"
	"github.com/joefazee/categorias/internal/nexus"
)

type Config struct {
	DB         database.Config
	Categories categories.Config
	Membership membership.Config

	AppHost  string `env:"APP_HOST" env-default:"localhost"`
	AppPort  string `env:"APP_PORT" env-default:"8080" validate:"required,numeric"`
	Env      string `env:"APP_ENV" env-default:"development" validate:"oneof=development test staging production"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`
}

// LoadConfig loads the application configuration from environment variables or a config file.
func LoadConfig(opts ...nexus.LoaderOption) (*Config, error) {
	c := &Config{}
	if err := nexus.NewLoader(opts...).Load(c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the parts nexus cannot express as tags. Database settings
// only matter for the postgres backend.
func (c *Config) Validate() error {
	if err := c.Categories.Validate(); err != nil {
		return err
	}
	if err := c.Membership.Validate(); err != nil {
		return err
	}
	if c.Categories.Backend == categories.BackendPostgres {
		return c.DB.Validate()
	}
	return nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.AppHost, c.AppPort)
}

func (c *Config) Level() logger.Level {
	return logger.ParseLevel(c.LogLevel)
}
