// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

/*
Package dispatch composes the catalog, payload adapter, executor and auditor
into the single Invoke entry point.

Pipeline per invocation:

 1. Resolve the operation code against the catalog.
 2. Apply the entry's policy to the verified caller.
 3. Adapt the payload into named arguments.
 4. Run the target routine and capture its tables.
 5. Build the result envelope.
 6. Hand the result to the auditor.

Every path, including a recovered panic, yields a [Result] and an audit
record. Errors are reported inside the envelope, never returned.
*/
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/audit"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/catalog"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/executor"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/payload"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/ctxutil"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/metrics"
	"github.com/JorgeMataSaucedo/ProcBridge/pkg/uuidv7"
)

// unresolvedCode labels metrics for codes that never matched a catalog entry,
// so arbitrary caller input cannot grow the label set.
const unresolvedCode = "_unresolved"

// outcomeOK is the metrics outcome of a successful invocation. Failures use
// the lower-cased error code.
const outcomeOK = "ok"

// # Contracts

// Resolver looks up active catalog entries.
type Resolver interface {
	Resolve(ctx context.Context, code string) (*catalog.Entry, error)
}

// Runner executes a routine and returns its tables.
type Runner interface {
	Run(ctx context.Context, target string, args []payload.Argument, transactional bool) ([]executor.Table, error)
}

// Recorder receives the audit record of every invocation.
type Recorder interface {
	Record(ctx context.Context, record *audit.Record)
}

// # Engine

// Engine runs invocations. It holds no per-invocation state and is safe for
// concurrent use.
type Engine struct {
	resolver Resolver
	roles    catalog.RoleChecker
	adapter  *payload.Adapter
	runner   Runner
	recorder Recorder

	metrics *metrics.Metrics
	now     func() time.Time
	newID   func() string
}

// Option customises an [Engine].
type Option func(*Engine)

// WithMetrics records invocation counters and latencies.
func WithMetrics(m *metrics.Metrics) Option {
	return func(engine *Engine) { engine.metrics = m }
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(engine *Engine) { engine.now = now }
}

// WithIDs replaces the invocation id generator, for tests.
func WithIDs(newID func() string) Option {
	return func(engine *Engine) { engine.newID = newID }
}

// New creates an Engine. roles may be nil, in which case the roles carried by
// the caller are trusted. recorder may be nil to disable auditing.
func New(resolver Resolver, roles catalog.RoleChecker, adapter *payload.Adapter, runner Runner, recorder Recorder, opts ...Option) *Engine {
	engine := &Engine{
		resolver: resolver,
		roles:    roles,
		adapter:  adapter,
		runner:   runner,
		recorder: recorder,
		now:      time.Now,
		newID:    uuidv7.New,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

/*
Invoke runs one invocation end to end.

Description: The returned result is never nil. Failures of any stage are
reported through OK=false with the error's message and code; a panic anywhere
in the pipeline becomes an EXECUTION_ERROR. The audit record is handed over
after the result is final.

Parameters:
  - ctx: context.Context (cancellation aborts the routine call)
  - request: Request

Returns:
  - *Result: the envelope sent back to the caller
*/
func (engine *Engine) Invoke(ctx context.Context, request Request) (result *Result) {
	start := engine.now()
	code := strings.TrimSpace(request.OperationCode)

	result = &Result{
		Meta: ResultMeta{
			InvocationID:  engine.newID(),
			OperationCode: code,
			ExecutedAt:    start.UTC(),
			CallerID:      request.Meta.CallerID,
			ClientApp:     request.Meta.ClientApp,
			CorrelationID: request.Meta.CorrelationID,
		},
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			ctxutil.GetLogger(ctx).ErrorContext(ctx, "invocation_panic",
				slog.String("invocation_id", result.Meta.InvocationID),
				slog.String("operation_code", code),
				slog.Any("panic", recovered),
			)
			engine.fail(result, apperr.Execution(fmt.Errorf("panic: %v", recovered), "Error: unexpected failure while invoking operation"))
		}

		elapsed := engine.now().Sub(start)
		result.Meta.DurationMs = elapsed.Milliseconds()

		engine.observe(result, elapsed)
		engine.audit(ctx, request, result)
	}()

	tables, err := engine.run(ctx, code, request, &result.Meta)
	if err != nil {
		engine.fail(result, err)
		ctxutil.GetLogger(ctx).InfoContext(ctx, "invocation_failed",
			slog.String("invocation_id", result.Meta.InvocationID),
			slog.String("operation_code", code),
			slog.String("error_code", result.ErrorCode),
			slog.String("error", result.ErrorMessage),
		)
		return result
	}

	if tables == nil {
		tables = []executor.Table{}
	}
	result.OK = true
	result.Data = &Data{Tables: tables}
	result.Meta.TableCount = len(tables)

	return result
}

// run is stages 1 to 4. meta.TargetName is set once the entry resolves.
func (engine *Engine) run(ctx context.Context, code string, request Request, meta *ResultMeta) ([]executor.Table, error) {
	// ── 1. Resolve ───────────────────────────────────────────────────────
	entry, err := engine.resolver.Resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	meta.TargetName = entry.TargetName

	// ── 2. Authorize ─────────────────────────────────────────────────────
	decision, err := catalog.Authorize(ctx, entry, request.Caller, engine.roles)
	if err != nil {
		return nil, err
	}
	if decision != catalog.Allowed {
		return nil, decision.Err(entry.Code)
	}

	// ── 3. Adapt ─────────────────────────────────────────────────────────
	args, err := engine.adapter.Adapt(request.Payload)
	if err != nil {
		return nil, err
	}

	// ── 4. Run ───────────────────────────────────────────────────────────
	return engine.runner.Run(ctx, entry.TargetName, args, entry.Transactional)
}

// fail copies err into the envelope. Errors outside the taxonomy are
// reported as execution errors.
func (engine *Engine) fail(result *Result, err error) {
	appError := apperr.As(err)
	if appError == nil {
		appError = apperr.Execution(err, "Error: "+err.Error())
	}

	result.OK = false
	result.Data = nil
	result.Meta.TableCount = 0
	result.ErrorMessage = appError.Message
	result.ErrorCode = appError.Code
}

func (engine *Engine) observe(result *Result, elapsed time.Duration) {
	label := unresolvedCode
	if result.Meta.TargetName != "" {
		label = result.Meta.OperationCode
	}

	outcome := outcomeOK
	if !result.OK {
		outcome = strings.ToLower(result.ErrorCode)
	}

	engine.metrics.ObserveInvocation(label, outcome, elapsed)
}

func (engine *Engine) audit(ctx context.Context, request Request, result *Result) {
	if engine.recorder == nil {
		return
	}

	engine.recorder.Record(ctx, &audit.Record{
		InvocationID:  result.Meta.InvocationID,
		OperationCode: result.Meta.OperationCode,
		TargetName:    result.Meta.TargetName,
		PayloadJSON:   audit.SnapshotPayload(request.Payload),
		Success:       result.OK,
		ErrorMessage:  result.ErrorMessage,
		DurationMs:    result.Meta.DurationMs,
		TableCount:    result.Meta.TableCount,
		CallerID:      result.Meta.CallerID,
		CallerName:    request.Meta.CallerName,
		ClientApp:     result.Meta.ClientApp,
		SourceAddress: request.Meta.SourceAddress,
		CorrelationID: result.Meta.CorrelationID,
		ExecutedAt:    result.Meta.ExecutedAt,
	})
}
