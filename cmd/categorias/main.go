package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/joefazee/categorias/app"
	"github.com/joefazee/categorias/app/api"
	"github.com/joefazee/categorias/app/categories"
	"github.com/joefazee/categorias/app/database"
	"github.com/joefazee/categorias/app/membership"
	"github.com/joefazee/categorias/internal/cache"
	"github.com/joefazee/categorias/internal/logger"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	log := logger.NewZeroLogger(os.Stdout, logger.LevelInfo, logger.Fields{"service": "categorias"})

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatal(err, map[string]interface{}{"stage": "config"})
	}
	log.SetLevel(cfg.Level())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal(err, nil)
	}
	log.Info("categorias stopped", nil)
}

func run(ctx context.Context, cfg *app.Config, log logger.Logger) error {
	checks := map[string]api.Check{}

	var db *gorm.DB
	if cfg.Categories.Backend == categories.BackendPostgres {
		var err error
		db, err = database.New(&cfg.DB)
		if err != nil {
			return err
		}
		defer func() {
			if err := database.Close(db); err != nil {
				log.Error(err, map[string]interface{}{"stage": "shutdown"})
			}
		}()

		if err := database.Migrate(cfg.DB.URL()); err != nil {
			return err
		}
		checks["database"] = func(ctx context.Context) error { return database.Ping(ctx, db) }
	}

	svc, err := categories.Init(categories.Dependencies{
		DB:     db,
		Config: cfg.Categories,
		Logger: log,
	})
	if err != nil {
		return err
	}

	// Counters are maintained incrementally; a failed repair waits for the next start.
	if drift, err := svc.RecountPosts(ctx); err != nil {
		log.Error(err, map[string]interface{}{"stage": "recount"})
	} else if len(drift) > 0 {
		log.Warn("posts_count repaired on startup", map[string]interface{}{"categories": len(drift)})
	}

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Membership.Enabled() {
		opts := cfg.Membership.RedisOptions()
		client := cache.NewRedisClient(opts)
		defer client.Close()

		claims, err := cache.New[string](cfg.Membership.ClaimStore, client, opts.OpTimeout)
		if err != nil {
			return err
		}
		defer claims.Close()

		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }

		sub := membership.NewSubscriber(client, svc, claims, cfg.Membership, log)
		g.Go(func() error { return sub.Run(ctx) })
	} else {
		log.Warn("membership subscriber disabled, REDIS_ADDR is empty", nil)
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(api.HealthInfo{Environment: cfg.Env, Version: version}, checks),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		log.Info("http server listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
