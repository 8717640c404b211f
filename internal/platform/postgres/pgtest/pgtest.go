// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

// Package pgtest opens a migrated PostgreSQL pool for store tests.
//
// Tests that call [Pool] are opt-in: they are skipped unless
// PROCBRIDGE_TEST_DATABASE_URL points at a disposable database. Migrations
// are applied on first use; callers create rows with unique keys and remove
// them in t.Cleanup, so packages may share one database.
package pgtest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/migration"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/postgres"
)

// EnvDatabaseURL names the variable holding the test database DSN.
const EnvDatabaseURL = "PROCBRIDGE_TEST_DATABASE_URL"

// Pool returns a pool over the migrated test database, closed when t ends.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv(EnvDatabaseURL)
	if dsn == "" {
		t.Skipf("integration tests are disabled; set %s to enable", EnvDatabaseURL)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	require.NoError(t, migration.RunUp(dsn, migrationsPath(), logger))

	pool, err := postgres.NewPool(context.Background(), dsn, 4, logger)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return pool
}

// migrationsPath resolves data/migrations from this file so tests work from
// any package directory.
func migrationsPath() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "..", "data", "migrations")
}
