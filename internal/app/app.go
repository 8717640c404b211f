// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

/*
Package app builds the ProcBridge component graph from a [config.Config].

Both the HTTP server and the operator CLI start from [New], so an invocation
from the command line goes through exactly the same catalog, policy,
executor and audit path as one over HTTP.
*/
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/api"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/audit"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/auth"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/catalog"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/dispatch"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/executor"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/payload"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/config"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/metrics"
	pgstore "github.com/JorgeMataSaucedo/ProcBridge/internal/platform/postgres"
	redisstore "github.com/JorgeMataSaucedo/ProcBridge/internal/platform/redis"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/sec"
)

// App is the wired component graph.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Pool  *pgxpool.Pool
	DB    *sql.DB
	Redis *goredis.Client

	Tokens   *sec.TokenService
	Auth     *auth.Service
	Registry *catalog.Registry
	Auditor  *audit.Auditor
	Engine   *dispatch.Engine

	// FileCatalog is set when CATALOG_SOURCE=file so the caller can watch it.
	FileCatalog *catalog.FileStore
}

// New connects to the backing services and builds every component.
//
// # Steps
//  1. PostgreSQL pool and its database/sql view.
//  2. Redis, when configured.
//  3. Token service and AuthManager.
//  4. Catalog store, optionally behind the Redis cache.
//  5. Executor, auditor and the dispatch engine.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger, Metrics: metrics.New()}

	// ── 1. PostgreSQL ────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns, logger)
	if err != nil {
		return nil, fmt.Errorf("app_postgres_failed: %w", err)
	}
	app.Pool = pool
	app.DB = pgstore.OpenDB(pool)

	// ── 2. Redis ─────────────────────────────────────────────────────────
	if cfg.RedisURL != "" {
		client, err := redisstore.NewClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			app.closeStores()
			return nil, fmt.Errorf("app_redis_failed: %w", err)
		}
		app.Redis = client
	}

	// ── 3. AuthManager ───────────────────────────────────────────────────
	tokens, err := sec.NewTokenService(sec.TokenConfig{
		Secret:         cfg.JWTSecret,
		PrivateKeyPath: cfg.JWTPrivKeyPath,
		PublicKeyPath:  cfg.JWTPubKeyPath,
		Issuer:         cfg.JWTIssuer,
		Audience:       cfg.JWTAudience,
	})
	if err != nil {
		app.closeStores()
		return nil, fmt.Errorf("app_token_service_failed: %w", err)
	}
	app.Tokens = tokens
	app.Auth = auth.NewService(
		auth.NewIdentityRepository(pool),
		auth.NewRefreshTokenRepository(pool),
		tokens,
		auth.WithTTLs(cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		auth.WithLogger(logger),
	)

	// ── 4. Catalog ───────────────────────────────────────────────────────
	store, err := app.catalogStore()
	if err != nil {
		app.closeStores()
		return nil, err
	}
	app.Registry = catalog.NewRegistry(store)

	// ── 5. Executor, audit, engine ───────────────────────────────────────
	isolation, err := cfg.Isolation()
	if err != nil {
		app.closeStores()
		return nil, err
	}
	runner := executor.New(app.DB, executor.Config{Timeout: cfg.ExecTimeout, Isolation: isolation})

	app.Auditor = audit.New(audit.NewPostgresSink(pool), audit.Config{
		Async:   cfg.AuditMode == config.AuditModeAsync,
		Timeout: cfg.AuditTimeout,
	}, logger, app.Metrics)

	app.Engine = dispatch.New(
		app.Registry,
		app.Auth,
		payload.NewAdapter(cfg.ParamMarker),
		runner,
		app.Auditor,
		dispatch.WithMetrics(app.Metrics),
	)

	return app, nil
}

func (app *App) catalogStore() (catalog.Store, error) {
	var store catalog.Store

	switch app.Config.CatalogSource {
	case config.CatalogSourceFile:
		fileStore, err := catalog.NewFileStore(app.Config.CatalogFile, app.Logger)
		if err != nil {
			return nil, fmt.Errorf("app_catalog_file_failed: %w", err)
		}
		app.FileCatalog = fileStore
		store = fileStore
	default:
		store = catalog.NewPostgresStore(app.Pool)
	}

	if app.Redis != nil && app.Config.CatalogCacheTTL > 0 {
		store = catalog.NewCachedStore(store, app.Redis, app.Config.CatalogCacheTTL, app.Metrics, app.Logger)
	}

	return store, nil
}

// Server builds the HTTP server over the wired components.
func (app *App) Server(ctx context.Context) *api.Server {
	checks := api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error { return pgstore.Ping(ctx, app.Pool) },
		CheckCatalog: func(ctx context.Context) error {
			_, err := app.Registry.List(ctx)
			return err
		},
	}
	if app.Redis != nil {
		checks.CheckCache = func(ctx context.Context) error { return redisstore.Ping(ctx, app.Redis) }
	}
	liveness, readiness := api.NewHealthHandlers(checks, app.Logger)

	return api.NewServer(ctx, app.Config, app.Logger, app.Auth, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      auth.NewHandler(app.Auth),
		Dispatch:  dispatch.NewHandler(app.Engine),
		Catalog:   catalog.NewHandler(app.Registry),
		Metrics:   app.Metrics,
	})
}

// Close drains pending audit writes, then releases connections.
func (app *App) Close(ctx context.Context) error {
	var errs []error
	if app.Auditor != nil {
		if err := app.Auditor.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := app.closeStores(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (app *App) closeStores() error {
	var errs []error
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app_redis_close_failed: %w", err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app_db_close_failed: %w", err))
		}
	}
	if app.Pool != nil {
		app.Pool.Close()
	}
	return errors.Join(errs...)
}
