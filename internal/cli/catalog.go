// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/app"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/catalog"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/config"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
)

// CheckResult is the JSON output of catalog check.
type CheckResult struct {
	File    string          `json:"file"`
	Valid   bool            `json:"valid"`
	Error   string          `json:"error,omitempty"`
	Entries []catalog.Entry `json:"entries,omitempty"`
}

// NewCatalogCommand creates the catalog command group.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect operation catalogs",
	}

	check := &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a YAML catalog file",
		Long: `Validate a YAML catalog file without starting the server.

Unknown keys, invalid target names and duplicate codes are reported.

Example:
  procbridgectl catalog check catalog.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogCheck(rootOpts, args[0], cmd)
		},
	}

	list := &cobra.Command{
		Use:           "list",
		Short:         "List the configured catalog",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCatalogList(rootOpts, cmd)
		},
	}

	cmd.AddCommand(check, list)
	return cmd
}

func runCatalogCheck(opts *RootOptions, path string, cmd *cobra.Command) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	entries, parseErr := catalog.ParseFile(data)
	result := CheckResult{File: path, Valid: parseErr == nil, Entries: entries}
	if parseErr != nil {
		result.Error = parseErr.Error()
		result.Entries = nil
	}

	if opts.Format == "json" {
		if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d operation(s) OK\n", path, len(entries))
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: invalid\n  %s\n", path, result.Error)
	}

	if parseErr != nil {
		return fmt.Errorf("catalog %s is invalid", path)
	}
	return nil
}

func runCatalogList(opts *RootOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	components, err := app.New(ctx, cfg, opts.logger(cmd))
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		_ = components.Close(closeCtx)
	}()

	entries, err := components.Registry.List(ctx)
	if err != nil {
		return err
	}

	if opts.Format == "json" {
		if entries == nil {
			entries = []catalog.Entry{}
		}
		return writeJSON(cmd.OutOrStdout(), entries)
	}
	return printEntries(cmd.OutOrStdout(), entries)
}

func printEntries(w io.Writer, entries []catalog.Entry) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tTARGET\tIDENTITY\tROLES\tTX\tACTIVE")
	for _, entry := range entries {
		roles := strings.Join(entry.AllowedRoles, ",")
		if roles == "" {
			roles = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%s\t%t\t%t\n",
			entry.Code, entry.TargetName, entry.RequiresIdentity, roles, entry.Transactional, entry.Active)
	}
	return tw.Flush()
}
