// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package audit_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/audit"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/metrics"
)

// memSink collects records and can be told to fail, panic or block.
type memSink struct {
	mu      sync.Mutex
	records []audit.Record
	ctxErrs []error

	err   error
	panic bool
	block bool
}

func (s *memSink) Write(ctx context.Context, record *audit.Record) error {
	if s.panic {
		panic("sink exploded")
	}
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctxErrs = append(s.ctxErrs, ctx.Err())
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, *record)
	return nil
}

func (s *memSink) written() []audit.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]audit.Record(nil), s.records...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sampleRecord() *audit.Record {
	return &audit.Record{
		InvocationID:  "0190f6a2-0000-7000-8000-000000000001",
		OperationCode: "GET_USER",
		Success:       true,
		ExecutedAt:    time.Now(),
	}
}

/*
TestRecord_Sync verifies an inline write.
*/
func TestRecord_Sync(t *testing.T) {
	sink := &memSink{}
	auditor := audit.New(sink, audit.Config{}, discardLogger(), nil)

	auditor.Record(context.Background(), sampleRecord())

	require.Len(t, sink.written(), 1)
	assert.Equal(t, "GET_USER", sink.written()[0].OperationCode)
	assert.Zero(t, auditor.Failures())
}

/*
TestRecord_DetachedFromCaller verifies that a cancelled request still gets
its record written.
*/
func TestRecord_DetachedFromCaller(t *testing.T) {
	sink := &memSink{}
	auditor := audit.New(sink, audit.Config{Async: true}, discardLogger(), nil)

	// 1. Caller is already gone
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	auditor.Record(ctx, sampleRecord())
	require.NoError(t, auditor.Close(context.Background()))

	// 2. The write saw a live context
	require.Len(t, sink.written(), 1)
	assert.NoError(t, sink.ctxErrs[0])
}

/*
TestRecord_FailuresAreSwallowed verifies that errors and panics only show up
in the diagnostics.
*/
func TestRecord_FailuresAreSwallowed(t *testing.T) {
	m := metrics.New()

	// 1. Sink error
	failing := audit.New(&memSink{err: errors.New("relation does not exist")}, audit.Config{}, discardLogger(), m)
	assert.NotPanics(t, func() { failing.Record(context.Background(), sampleRecord()) })
	assert.Equal(t, uint64(1), failing.Failures())

	// 2. Sink panic
	panicking := audit.New(&memSink{panic: true}, audit.Config{}, discardLogger(), m)
	assert.NotPanics(t, func() { panicking.Record(context.Background(), sampleRecord()) })
	assert.Equal(t, uint64(1), panicking.Failures())

	// 3. Both reach the counter
	expected := `
# HELP procbridge_audit_failures_total Audit records that could not be persisted.
# TYPE procbridge_audit_failures_total counter
procbridge_audit_failures_total 2
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "procbridge_audit_failures_total"))
}

/*
TestRecord_Timeout verifies that a stuck sink is abandoned after the audit
timeout.
*/
func TestRecord_Timeout(t *testing.T) {
	auditor := audit.New(&memSink{block: true}, audit.Config{Timeout: 50 * time.Millisecond}, discardLogger(), nil)

	started := time.Now()
	auditor.Record(context.Background(), sampleRecord())

	assert.Less(t, time.Since(started), time.Second)
	assert.Equal(t, uint64(1), auditor.Failures())
}

/*
TestClose_DrainsAndFallsBackInline verifies shutdown ordering.
*/
func TestClose_DrainsAndFallsBackInline(t *testing.T) {
	sink := &memSink{}
	auditor := audit.New(sink, audit.Config{Async: true}, discardLogger(), nil)

	// 1. Several background writes are drained
	for i := 0; i < 20; i++ {
		auditor.Record(context.Background(), sampleRecord())
	}
	require.NoError(t, auditor.Close(context.Background()))
	assert.Len(t, sink.written(), 20)

	// 2. After close, writes happen inline
	auditor.Record(context.Background(), sampleRecord())
	assert.Len(t, sink.written(), 21)
}

/*
TestClose_GivesUp verifies that Close honours its deadline.
*/
func TestClose_GivesUp(t *testing.T) {
	auditor := audit.New(&memSink{block: true}, audit.Config{Async: true, Timeout: time.Minute}, discardLogger(), nil)
	auditor.Record(context.Background(), sampleRecord())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.Error(t, auditor.Close(ctx))
}

/*
TestSnapshotPayload verifies the payload text stored with a record.
*/
func TestSnapshotPayload(t *testing.T) {
	assert.Equal(t, "", audit.SnapshotPayload(nil))
	assert.Equal(t, `{"id": 7}`, audit.SnapshotPayload(json.RawMessage(`{"id": 7}`)))
	assert.Equal(t, `{"id":7}`, audit.SnapshotPayload(map[string]any{"id": 7}))

	// Unserializable payloads leave a marker instead of failing
	for _, payload := range []any{make(chan int), json.RawMessage(`{broken`)} {
		var marker map[string]string
		require.NoError(t, json.Unmarshal([]byte(audit.SnapshotPayload(payload)), &marker))
		assert.Contains(t, marker, "_unserializable")
	}
}
