// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

// Command api is the entry point for the ProcBridge HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Run database migrations (idempotent, optional).
//  4. Wire components (postgres, redis, auth, catalog, executor, audit).
//  5. Start background jobs (refresh token purge, catalog file watch).
//  6. Start HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/app"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/config"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/migration"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	log := newLogger(slog.LevelInfo)
	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("catalog_source", cfg.CatalogSource),
		slog.String("audit_mode", cfg.AuditMode),
	)

	// Startup deadline so misconfiguration fails fast instead of hanging.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Migrations ─────────────────────────────────────────────────────
	if cfg.RunMigrations {
		must(log, migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log), "run migrations")
	}

	// ── 4. Components ─────────────────────────────────────────────────────
	components, err := app.New(startupCtx, cfg, log)
	must(log, err, "wire components")

	// ── 5. Background jobs ────────────────────────────────────────────────
	jobsCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	go purgeRefreshTokens(jobsCtx, components, log)

	if components.FileCatalog != nil {
		go func() {
			if err := components.FileCatalog.Watch(jobsCtx); err != nil {
				log.Error("catalog_watch_stopped", slog.Any("error", err))
			}
		}()
	}

	// ── 6. HTTP Server ────────────────────────────────────────────────────
	server := components.Server(jobsCtx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	// ── 7. Graceful Shutdown ──────────────────────────────────────────────
	log.Info("shutting_down_server", slog.Duration("timeout", constants.ShutdownTimeout))

	exitCode := 0
	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		log.Error("shutdown_error", slog.Any("error", err))
		exitCode = 1
	}
	stopJobs()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer closeCancel()
	if err := components.Close(closeCtx); err != nil {
		log.Error("component_close_error", slog.Any("error", err))
		exitCode = 1
	}

	log.Info("server_stopped", slog.Int("exit_code", exitCode))
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

// purgeRefreshTokens deletes long-expired refresh records until ctx ends.
func purgeRefreshTokens(ctx context.Context, components *app.App, log *slog.Logger) {
	ticker := time.NewTicker(constants.RefreshPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := components.Auth.PurgeExpired(ctx); err != nil {
				log.Warn("refresh_token_purge_failed", slog.Any("error", err))
			}
		}
	}
}

func newLogger(level slog.Level) *slog.Logger {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String("app", constants.AppName))
	slog.SetDefault(log)
	return log
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned and
// handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
