// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/metrics"
)

// Config controls how records are written.
type Config struct {
	// Async writes on a background goroutine; Close waits for them.
	Async bool
	// Timeout bounds one write. Non-positive means the default.
	Timeout time.Duration
}

// Auditor records invocation attempts without ever failing them.
type Auditor struct {
	sink    Sink
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	closed   bool
	wg       sync.WaitGroup
	failures atomic.Uint64
}

// New creates an Auditor writing to sink.
func New(sink Sink, cfg Config, logger *slog.Logger, m *metrics.Metrics) *Auditor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultAuditTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Auditor{sink: sink, cfg: cfg, logger: logger, metrics: m}
}

// Record persists record. It never returns an error and never panics.
// After Close, records are written inline.
func (auditor *Auditor) Record(ctx context.Context, record *Record) {
	if auditor == nil || record == nil {
		return
	}

	// ── 1. Detach from the caller ────────────────────────────────────────
	detached := context.WithoutCancel(ctx)

	if !auditor.cfg.Async {
		auditor.write(detached, record)
		return
	}

	// ── 2. Background write ──────────────────────────────────────────────
	auditor.mu.Lock()
	if auditor.closed {
		auditor.mu.Unlock()
		auditor.write(detached, record)
		return
	}
	auditor.wg.Add(1)
	auditor.mu.Unlock()

	go func() {
		defer auditor.wg.Done()
		auditor.write(detached, record)
	}()
}

// write is the guarded call: panics are recovered and errors swallowed.
func (auditor *Auditor) write(ctx context.Context, record *Record) {
	ctx, cancel := context.WithTimeout(ctx, auditor.cfg.Timeout)
	defer cancel()

	defer func() {
		if recovered := recover(); recovered != nil {
			auditor.fail(record, fmt.Errorf("audit sink panicked: %v", recovered))
		}
	}()

	if err := auditor.sink.Write(ctx, record); err != nil {
		auditor.fail(record, err)
	}
}

func (auditor *Auditor) fail(record *Record, err error) {
	auditor.failures.Add(1)
	auditor.metrics.AuditFailed()
	auditor.logger.Warn("audit_write_failed",
		slog.String("invocation_id", record.InvocationID),
		slog.String("operation_code", record.OperationCode),
		slog.Any("error", err),
	)
}

// Failures reports how many records were dropped since start.
func (auditor *Auditor) Failures() uint64 {
	return auditor.failures.Load()
}

// Close waits for in-flight background writes, up to ctx.
func (auditor *Auditor) Close(ctx context.Context) error {
	auditor.mu.Lock()
	auditor.closed = true
	auditor.mu.Unlock()

	done := make(chan struct{})
	go func() {
		auditor.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("audit_drain_incomplete: %w", ctx.Err())
	}
}
