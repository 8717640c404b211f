// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

/*
Package executor runs a catalogued PostgreSQL routine and captures every
tabular result it produces.

# Call Shape

	SELECT * FROM <target>(<arg> => $1, <arg> => $2, ...)

Named notation lets one payload bind regardless of parameter order. The
target and argument names are validated identifiers; values always travel as
bind parameters.

# Scope

Every call runs on its own connection inside a transaction, because
refcursors only live inside one. Transactional calls commit as the very last
statement. Non-transactional calls commit as soon as the routine itself has
returned, even when reading its cursors fails afterwards.
*/
package executor

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/payload"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/ctxutil"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/dberr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/validate"
)

// SQLSTATE 57014: statement cancelled (statement_timeout or cancel request).
const codeQueryCanceled = "57014"

const captureSavepoint = "procbridge_capture"

// Config holds the execution limits.
type Config struct {
	// Timeout bounds the whole call, from acquiring the connection to the last row.
	Timeout time.Duration
	// Isolation applies to transactional calls only.
	Isolation sql.IsolationLevel
}

// Table is one captured result set.
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Executor runs routines over a database/sql handle.
type Executor struct {
	db  *sql.DB
	cfg Config
}

// New creates an Executor. A non-positive timeout falls back to the default.
func New(db *sql.DB, cfg Config) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultExecTimeout
	}
	return &Executor{db: db, cfg: cfg}
}

// Run invokes target with args and returns its result tables in the order
// they were produced. Zero-column results are dropped.
//
// # Errors
//   - VALIDATION_ERROR: target is not a routine name.
//   - DATABASE_ERROR: the server rejected the call ("SQL Error: ...").
//   - EXECUTION_ERROR: timeout, cancellation, connection or binding failure.
func (executor *Executor) Run(ctx context.Context, target string, args []payload.Argument, transactional bool) (tables []Table, err error) {
	if !validate.IsQualifiedName(target) {
		return nil, apperr.ValidationError(fmt.Sprintf("invalid target name %q", target))
	}
	for _, arg := range args {
		if !validate.IsIdentifier(arg.Name) {
			return nil, apperr.ValidationError(fmt.Sprintf("invalid argument name %q", arg.Name))
		}
	}

	ctx, cancel := context.WithTimeout(ctx, executor.cfg.Timeout)
	defer cancel()

	logger := ctxutil.GetLogger(ctx)

	// ── 1. Exclusive connection ──────────────────────────────────────────
	conn, err := executor.db.Conn(ctx)
	if err != nil {
		return nil, executor.classify(ctx, err)
	}
	defer conn.Close()

	// ── 2. Scope ─────────────────────────────────────────────────────────
	var txOptions *sql.TxOptions
	if transactional {
		txOptions = &sql.TxOptions{Isolation: executor.cfg.Isolation}
	}

	tx, err := conn.BeginTx(ctx, txOptions)
	if err != nil {
		return nil, executor.classify(ctx, err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			logger.Warn("routine_rollback_failed", slog.String("target", target), slog.Any("error", rollbackErr))
		}
	}()

	timeoutStatement := fmt.Sprintf("SET LOCAL statement_timeout = %d", executor.cfg.Timeout.Milliseconds())
	if _, err := tx.ExecContext(ctx, timeoutStatement); err != nil {
		return nil, executor.classify(ctx, err)
	}

	// ── 3. Call ──────────────────────────────────────────────────────────
	query, values := buildCall(target, args)

	rows, err := tx.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, executor.classify(ctx, err)
	}

	captures, err := readResultSets(rows)
	if err != nil {
		return nil, executor.classify(ctx, err)
	}

	// ── 4. Cursors ───────────────────────────────────────────────────────
	// The routine has returned. For non-transactional calls its effects
	// must survive a failure while fetching cursors.
	guarded := !transactional && hasCursors(captures)
	if guarded {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+captureSavepoint); err != nil {
			return nil, executor.classify(ctx, err)
		}
	}

	tables, captureErr := executor.expand(ctx, tx, captures)
	if captureErr != nil {
		if guarded {
			executor.commitAfterCaptureFailure(ctx, tx, target, logger)
			committed = true
		}
		return nil, executor.classify(ctx, captureErr)
	}

	// ── 5. Commit (last statement) ───────────────────────────────────────
	if err := tx.Commit(); err != nil {
		return nil, executor.classify(ctx, err)
	}
	committed = true

	return tables, nil
}

// commitAfterCaptureFailure keeps the side effects of a routine whose cursor
// reading failed. Errors here are logged only; the capture error is what the
// caller sees.
func (executor *Executor) commitAfterCaptureFailure(ctx context.Context, tx *sql.Tx, target string, logger *slog.Logger) {
	if _, err := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+captureSavepoint); err != nil {
		logger.Warn("routine_savepoint_restore_failed", slog.String("target", target), slog.Any("error", err))
	}
	if err := tx.Commit(); err != nil {
		logger.Warn("routine_commit_after_capture_failed", slog.String("target", target), slog.Any("error", err))
	}
}

// buildCall renders the named-notation call and its bind values.
func buildCall(target string, args []payload.Argument) (string, []any) {
	var builder strings.Builder
	values := make([]any, 0, len(args))

	builder.WriteString("SELECT * FROM ")
	builder.WriteString(target)
	builder.WriteByte('(')
	for i, arg := range args {
		if i > 0 {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s => $%d", arg.Name, i+1)
		values = append(values, arg.Value.Any())
	}
	builder.WriteByte(')')

	return builder.String(), values
}

// expand turns captures into tables, fetching refcursors in order.
func (executor *Executor) expand(ctx context.Context, tx *sql.Tx, captures []capture) ([]Table, error) {
	tables := make([]Table, 0, len(captures))

	for _, c := range captures {
		if c.table != nil {
			tables = append(tables, *c.table)
			continue
		}

		for _, cursor := range c.cursors {
			rows, err := tx.QueryContext(ctx, "FETCH ALL FROM "+pgx.Identifier{cursor}.Sanitize())
			if err != nil {
				return nil, err
			}

			fetched, err := readResultSets(rows)
			if err != nil {
				return nil, err
			}
			for _, f := range fetched {
				// A cursor over another cursor is not followed.
				if f.table != nil {
					tables = append(tables, *f.table)
				}
			}
		}
	}

	return tables, nil
}

// classify maps a failure onto the caller-facing taxonomy. ctx is the call's
// own timeout context.
func (executor *Executor) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if apperr.IsAppError(err) {
		return err
	}

	// Deadline and cancellation win over whatever the driver reported.
	switch ctxErr := ctx.Err(); {
	case errors.Is(ctxErr, context.DeadlineExceeded):
		return apperr.Execution(err, fmt.Sprintf("Error: execution timed out after %s", executor.cfg.Timeout))
	case errors.Is(ctxErr, context.Canceled):
		return apperr.Execution(err, "Error: execution cancelled")
	}

	if pgErr, ok := dberr.AsPgError(err); ok {
		if pgErr.Code == codeQueryCanceled {
			return apperr.Execution(err, "Error: "+pgErr.Message)
		}
		return apperr.Database(err, pgErr.Message)
	}

	return apperr.Execution(err, "Error: "+err.Error())
}

// normalize converts driver values into JSON-friendly values. json/jsonb
// stay raw documents, bytea stays binary, other byte slices become text.
func normalize(value any, databaseType string) any {
	switch v := value.(type) {
	case []byte:
		switch databaseType {
		case "JSON", "JSONB":
			return json.RawMessage(append([]byte(nil), v...))
		case "BYTEA":
			return append([]byte(nil), v...)
		default:
			return string(v)
		}
	case string:
		if databaseType == "JSON" || databaseType == "JSONB" {
			if json.Valid([]byte(v)) {
				return json.RawMessage(v)
			}
		}
		return v
	default:
		return v
	}
}
