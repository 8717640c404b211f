// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to the engine components via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Enumerations

const (
	// CatalogSourcePostgres reads operation entries from the catalog table.
	CatalogSourcePostgres = "postgres"
	// CatalogSourceFile reads operation entries from a YAML document on disk.
	CatalogSourceFile = "file"

	// AuditModeAsync persists audit records on a background goroutine.
	AuditModeAsync = "async"
	// AuditModeSync persists audit records inline before Invoke returns.
	AuditModeSync = "sync"
)

// # Configuration Schema

// Config holds all runtime configuration for the ProcBridge server and CLI.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL      string `env:"DATABASE_URL,required,notEmpty"`
	DatabaseMaxConns int32  `env:"DATABASE_MAX_CONNS" envDefault:"25"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`
	RunMigrations bool   `env:"RUN_MIGRATIONS" envDefault:"true"`

	// Key-Value Cache (Redis). Empty disables the catalog cache.
	RedisURL string `env:"REDIS_URL"`

	// Token signing. RS256 is used when both key paths are set, HS256 otherwise.
	JWTSecret       string        `env:"JWT_SECRET"`
	JWTPrivKeyPath  string        `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPubKeyPath   string        `env:"JWT_PUBLIC_KEY_PATH"`
	JWTIssuer       string        `env:"JWT_ISSUER"        envDefault:"procbridge"`
	JWTAudience     string        `env:"JWT_AUDIENCE"      envDefault:"procbridge-api"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL"  envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	// Operation catalog
	CatalogSource   string        `env:"CATALOG_SOURCE"    envDefault:"postgres"`
	CatalogFile     string        `env:"CATALOG_FILE"      envDefault:"./catalog.yaml"`
	CatalogCacheTTL time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"30s"`

	// Invocation
	ParamMarker string        `env:"PARAM_MARKER" envDefault:"p_"`
	ExecTimeout time.Duration `env:"EXEC_TIMEOUT" envDefault:"300s"`
	TxIsolation string        `env:"TX_ISOLATION" envDefault:"read_committed"`

	// Audit trail
	AuditMode    string        `env:"AUDIT_MODE"    envDefault:"async"`
	AuditTimeout time.Duration `env:"AUDIT_TIMEOUT" envDefault:"5s"`

	// Cross-Origin Resource Sharing (comma-separated)
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct and validates it.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	hasKeyPair := c.JWTPrivKeyPath != "" && c.JWTPubKeyPath != ""
	if !hasKeyPair && c.JWTSecret == "" {
		errs = append(errs, errors.New("config: JWT_SECRET or JWT_PRIVATE_KEY_PATH/JWT_PUBLIC_KEY_PATH must be set"))
	}

	switch c.CatalogSource {
	case CatalogSourcePostgres, CatalogSourceFile:
	default:
		errs = append(errs, fmt.Errorf("config: unknown CATALOG_SOURCE %q", c.CatalogSource))
	}

	switch c.AuditMode {
	case AuditModeAsync, AuditModeSync:
	default:
		errs = append(errs, fmt.Errorf("config: unknown AUDIT_MODE %q", c.AuditMode))
	}

	if _, err := c.Isolation(); err != nil {
		errs = append(errs, err)
	}

	if c.DatabaseMaxConns < 2 {
		errs = append(errs, errors.New("config: DATABASE_MAX_CONNS must be at least 2"))
	}

	if c.ExecTimeout <= 0 {
		errs = append(errs, errors.New("config: EXEC_TIMEOUT must be positive"))
	}

	return errors.Join(errs...)
}

// Isolation maps TX_ISOLATION to the database/sql isolation level.
func (c *Config) Isolation() (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(c.TxIsolation)) {
	case "", "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	default:
		return sql.LevelDefault, fmt.Errorf("config: unknown TX_ISOLATION %q", c.TxIsolation)
	}
}

// Origins returns the configured extra CORS origins.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.ExtraOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
