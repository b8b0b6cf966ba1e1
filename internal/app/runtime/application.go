// Package runtime wires configuration, storage and the HTTP server into a
// runnable application.
package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	app "github.com/iacai-network/access-layer/internal/app"
	"github.com/iacai-network/access-layer/internal/app/httpapi"
	"github.com/iacai-network/access-layer/internal/app/storage/postgres"
	"github.com/iacai-network/access-layer/internal/app/storage/redisstore"
	"github.com/iacai-network/access-layer/internal/config"
	"github.com/iacai-network/access-layer/internal/platform/migrations"
	"github.com/iacai-network/access-layer/pkg/logger"
)

// Application manages the access layer's lifecycle.
type Application struct {
	cfg    *config.Config
	log    *logger.Logger
	app    *app.Application
	server *http.Server
	db     *sql.DB
	rdb    *redis.Client
}

// NewApplication constructs an application from the environment
// configuration.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewApplicationWithConfig(cfg)
}

// NewApplicationWithConfig constructs an application from an explicit
// configuration.
func NewApplicationWithConfig(cfg *config.Config) (*Application, error) {
	log := logger.New(cfg.Logging).Named("access-layer")

	stores, db, rdb, err := buildStores(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	application, err := app.New(cfg, stores, nil, nil, log)
	if err != nil {
		return nil, fmt.Errorf("wire application: %w", err)
	}

	handler := httpapi.NewHandler(application, cfg.RateLimit, log.Named("httpapi"))
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Application{
		cfg:    cfg,
		log:    log,
		app:    application,
		server: server,
		db:     db,
		rdb:    rdb,
	}, nil
}

// buildStores selects the persistence backend: Redis when configured,
// PostgreSQL when a DSN is present, in-memory otherwise.
func buildStores(cfg *config.Config, log *logger.Logger) (app.Stores, *sql.DB, *redis.Client, error) {
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return app.Stores{}, nil, nil, fmt.Errorf("ping redis %s: %w", cfg.Redis.Addr, err)
		}
		store := redisstore.New(client)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis store")
		return app.Stores{Ledger: store, Receipts: store, Sessions: store}, nil, client, nil
	}

	if cfg.Database.DSN != "" {
		db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
		if err != nil {
			return app.Stores{}, nil, nil, fmt.Errorf("open database: %w", err)
		}
		if cfg.Database.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		}
		if cfg.Database.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		}
		if cfg.Database.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
		}
		if err := db.Ping(); err != nil {
			return app.Stores{}, nil, nil, fmt.Errorf("ping database: %w", err)
		}
		migrateCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := migrations.Apply(migrateCtx, db); err != nil {
			return app.Stores{}, nil, nil, err
		}
		store := postgres.New(db)
		log.Info("using postgres store")
		return app.Stores{Ledger: store, Receipts: store, Sessions: store}, db, nil, nil
	}

	log.Info("no database configured; using in-memory store")
	return app.Stores{}, nil, nil, nil
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.log.Infof("HTTP server listening on %s", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server and releases resources.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	err := a.server.Shutdown(shutdownCtx)
	a.app.Close()
	if a.db != nil {
		if closeErr := a.db.Close(); err == nil {
			err = closeErr
		}
	}
	if a.rdb != nil {
		if closeErr := a.rdb.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}
