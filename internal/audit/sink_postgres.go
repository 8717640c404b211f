// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/database/schema"
	"github.com/JorgeMataSaucedo/ProcBridge/pkg/pointer"
)

// PostgresSink writes records into procbridge.execlog.
type PostgresSink struct {
	pool  *pgxpool.Pool
	query string
}

// NewPostgresSink creates a sink over the shared pool.
func NewPostgresSink(pool *pgxpool.Pool) *PostgresSink {
	columns := schema.ProcBridgeExecLog.Columns()

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	return &PostgresSink{
		pool: pool,
		query: fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`,
			schema.ProcBridgeExecLog.Table, strings.Join(columns, ", "), strings.Join(placeholders, ", ")),
	}
}

// Write inserts one record. Empty optional text is stored as NULL.
func (sink *PostgresSink) Write(ctx context.Context, record *Record) error {
	_, err := sink.pool.Exec(ctx, sink.query,
		record.InvocationID,
		record.OperationCode,
		pointer.NonZero(record.TargetName),
		pointer.NonZero(record.PayloadJSON),
		record.Success,
		pointer.NonZero(record.ErrorMessage),
		record.DurationMs,
		record.TableCount,
		pointer.NonZero(record.CallerID),
		pointer.NonZero(record.CallerName),
		pointer.NonZero(record.ClientApp),
		pointer.NonZero(record.SourceAddress),
		pointer.NonZero(record.CorrelationID),
		record.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_execlog_insert_failed: %w", err)
	}
	return nil
}
