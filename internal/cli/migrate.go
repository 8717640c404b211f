// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package cli

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/migration"
)

// databaseEnv is the slice of configuration the migrate commands need. It
// avoids demanding signing keys just to run a migration.
type databaseEnv struct {
	DatabaseURL   string `env:"DATABASE_URL"`
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`
}

// MigrateOptions holds flags for the migrate commands.
type MigrateOptions struct {
	*RootOptions
	DSN   string
	Path  string
	Steps int
}

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or inspect schema migrations",
		Long: `Apply or inspect schema migrations.

The database and migration directory default to DATABASE_URL and
MIGRATION_PATH; --dsn and --path override them.`,
	}

	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "database URL (default $DATABASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.Path, "path", "", "migrations directory (default $MIGRATION_PATH)")

	up := &cobra.Command{
		Use:           "up",
		Short:         "Apply all pending migrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, path, err := opts.resolve()
			if err != nil {
				return err
			}
			if err := migration.RunUp(dsn, path, opts.logger(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	down := &cobra.Command{
		Use:           "down",
		Short:         "Roll back migrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, path, err := opts.resolve()
			if err != nil {
				return err
			}
			if err := migration.RunDown(dsn, path, opts.Steps, opts.logger(cmd)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", opts.Steps)
			return nil
		},
	}
	down.Flags().IntVar(&opts.Steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:           "version",
		Short:         "Print the current schema version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, path, err := opts.resolve()
			if err != nil {
				return err
			}
			status, err := migration.Version(dsn, path, opts.logger(cmd))
			if err != nil {
				return err
			}
			return printStatus(cmd, opts.RootOptions, status)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

// resolve applies flag overrides on top of the environment.
func (opts *MigrateOptions) resolve() (string, string, error) {
	var cfg databaseEnv
	if err := env.Parse(&cfg); err != nil {
		return "", "", fmt.Errorf("cli_env_failed: %w", err)
	}
	if opts.DSN != "" {
		cfg.DatabaseURL = opts.DSN
	}
	if opts.Path != "" {
		cfg.MigrationPath = opts.Path
	}
	if cfg.DatabaseURL == "" {
		return "", "", errors.New("no database: set DATABASE_URL or pass --dsn")
	}
	return cfg.DatabaseURL, cfg.MigrationPath, nil
}

func printStatus(cmd *cobra.Command, opts *RootOptions, status migration.Status) error {
	if opts.Format == "json" {
		return writeJSON(cmd.OutOrStdout(), map[string]any{
			"version": status.Version,
			"dirty":   status.Dirty,
			"empty":   status.Empty,
		})
	}

	switch {
	case status.Empty:
		fmt.Fprintln(cmd.OutOrStdout(), "no migrations applied")
	case status.Dirty:
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty)\n", status.Version)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", status.Version)
	}
	return nil
}
