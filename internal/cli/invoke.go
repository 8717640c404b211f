// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/app"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/catalog"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/dispatch"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/config"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/pkg/uuidv7"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Payload       string
	Identity      string
	CorrelationID string
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <operation-code>",
		Short: "Invoke a catalogued operation",
		Long: `Invoke a catalogued operation through the same resolution, policy,
execution and audit path the HTTP API uses. The result envelope is printed as
JSON; the exit status is non-zero when the invocation fails.

Configuration is read from the same environment as the server.

Example:
  procbridgectl invoke GET_USER --payload '{"id": 42}'
  procbridgectl invoke CLOSE_MONTH --identity 0191d2a0-0000-7000-8000-000000000001`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Payload, "payload", "", "JSON payload")
	cmd.Flags().StringVar(&opts.Identity, "identity", "", "identity id to invoke as")
	cmd.Flags().StringVar(&opts.CorrelationID, "correlation-id", "", "correlation id recorded in the audit log")

	return cmd
}

func runInvoke(opts *InvokeOptions, code string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// ── 1. Payload ──────────────────────────────────────────────────────
	var payload any
	if opts.Payload != "" {
		if err := json.Unmarshal([]byte(opts.Payload), &payload); err != nil {
			return fmt.Errorf("invalid --payload: %w", err)
		}
	}

	if opts.Identity != "" && !uuidv7.IsValid(opts.Identity) {
		return fmt.Errorf("invalid --identity %q: not a UUID", opts.Identity)
	}

	// ── 2. Components ───────────────────────────────────────────────────
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

	// ── 3. Caller ───────────────────────────────────────────────────────
	request := dispatch.Request{
		OperationCode: code,
		Payload:       payload,
		Meta: dispatch.CallerMeta{
			ClientApp:     "procbridgectl",
			CorrelationID: opts.CorrelationID,
		},
	}

	if opts.Identity != "" {
		identity, err := components.Auth.GetIdentity(ctx, opts.Identity)
		if err != nil {
			return fmt.Errorf("identity %q: %w", opts.Identity, err)
		}
		request.Caller = &catalog.Caller{IdentityID: identity.ID, Roles: identity.Roles}
		request.Meta.CallerID = identity.ID
		request.Meta.CallerName = identity.DisplayName
	}

	// ── 4. Invoke ───────────────────────────────────────────────────────
	result := components.Engine.Invoke(ctx, request)
	if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("invocation failed: %s", result.ErrorMessage)
	}
	return nil
}
