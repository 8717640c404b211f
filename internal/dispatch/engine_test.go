// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package dispatch_test

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
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/audit"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/catalog"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/dispatch"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/executor"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/payload"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/metrics"
)

// # Fakes

type memStore map[string]catalog.Entry

func (store memStore) FindByCode(_ context.Context, code string) (*catalog.Entry, error) {
	entry, ok := store[code]
	if !ok {
		return nil, apperr.NotFound("Operation")
	}
	return &entry, nil
}

func (store memStore) List(context.Context) ([]catalog.Entry, error) {
	entries := make([]catalog.Entry, 0, len(store))
	for _, entry := range store {
		entries = append(entries, entry)
	}
	return entries, nil
}

type runCall struct {
	target        string
	args          []payload.Argument
	transactional bool
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []runCall
	tables []executor.Table
	err    error
	panic  any
}

func (runner *fakeRunner) Run(_ context.Context, target string, args []payload.Argument, transactional bool) ([]executor.Table, error) {
	runner.mu.Lock()
	runner.calls = append(runner.calls, runCall{target: target, args: args, transactional: transactional})
	runner.mu.Unlock()

	if runner.panic != nil {
		panic(runner.panic)
	}
	return runner.tables, runner.err
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []*audit.Record
}

func (recorder *fakeRecorder) Record(_ context.Context, record *audit.Record) {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	recorder.records = append(recorder.records, record)
}

type fixedRoles map[string][]string

func (roles fixedRoles) ValidateRoles(_ context.Context, identityID string, allowed []string) (bool, error) {
	held, ok := roles[identityID]
	if !ok {
		return false, nil
	}
	for _, h := range held {
		for _, a := range allowed {
			if strings.EqualFold(h, a) {
				return true, nil
			}
		}
	}
	return false, nil
}

// # Fixture

var executedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

const invocationID = "0191d2a0-0000-7000-8000-00000000abcd"

func catalogFixture() memStore {
	return memStore{
		"GET_USER": {Code: "GET_USER", TargetName: "sp_get_user", Active: true},
		"OLD_REPORT": {Code: "OLD_REPORT", TargetName: "sp_old_report", Active: false},
		"CLOSE_MONTH": {
			Code:             "CLOSE_MONTH",
			TargetName:       "finance.sp_close_month",
			RequiresIdentity: true,
			AllowedRoles:     []string{"finance"},
			Transactional:    true,
			Active:           true,
		},
		"WHOAMI": {Code: "WHOAMI", TargetName: "sp_whoami", RequiresIdentity: true, Active: true},
	}
}

func annTable() []executor.Table {
	return []executor.Table{{
		Columns: []string{"id", "name"},
		Rows:    []map[string]any{{"id": int64(7), "name": "Ann"}},
	}}
}

type harness struct {
	engine   *dispatch.Engine
	runner   *fakeRunner
	recorder *fakeRecorder
	metrics  *metrics.Metrics
}

func newHarness(runner *fakeRunner) *harness {
	recorder := &fakeRecorder{}
	m := metrics.New()
	engine := dispatch.New(
		catalog.NewRegistry(catalogFixture()),
		fixedRoles{"id-fin": {"Finance"}, "id-ops": {"ops"}},
		payload.NewAdapter("p_"),
		runner,
		recorder,
		dispatch.WithMetrics(m),
		dispatch.WithClock(func() time.Time { return executedAt }),
		dispatch.WithIDs(func() string { return invocationID }),
	)
	return &harness{engine: engine, runner: runner, recorder: recorder, metrics: m}
}

func meta() dispatch.CallerMeta {
	return dispatch.CallerMeta{ClientApp: "reports-ui", CorrelationID: "corr-1", SourceAddress: "10.0.0.9"}
}

func assertGolden(t *testing.T, name string, result *dispatch.Result) {
	t.Helper()
	actual, err := json.MarshalIndent(result, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, actual)
}

// # Tests

/*
TestInvoke_Success verifies the whole pipeline for an open operation: one
argument, one table and the documented envelope.
*/
func TestInvoke_Success(t *testing.T) {
	h := newHarness(&fakeRunner{tables: annTable()})

	// 1. Invoke
	result := h.engine.Invoke(context.Background(), dispatch.Request{
		OperationCode: "GET_USER",
		Payload:       map[string]any{"id": 7},
		Meta:          meta(),
	})

	// 2. Envelope
	require.True(t, result.OK, result.ErrorMessage)
	assert.Equal(t, 1, result.Meta.TableCount)
	assertGolden(t, "invoke_success", result)

	// 3. Runner received the adapted argument
	require.Len(t, h.runner.calls, 1)
	call := h.runner.calls[0]
	assert.Equal(t, "sp_get_user", call.target)
	assert.False(t, call.transactional)
	assert.Equal(t, []payload.Argument{{Name: "p_id", Value: payload.Int(7)}}, call.args)

	// 4. Audit
	require.Len(t, h.recorder.records, 1)
	record := h.recorder.records[0]
	assert.True(t, record.Success)
	assert.Equal(t, `{"id":7}`, record.PayloadJSON)
	assert.Equal(t, invocationID, record.InvocationID)
	assert.Equal(t, "10.0.0.9", record.SourceAddress)
	assert.Equal(t, 1, record.TableCount)
}

/*
TestInvoke_NoTables verifies that a routine without result sets still yields
an empty table list rather than null.
*/
func TestInvoke_NoTables(t *testing.T) {
	h := newHarness(&fakeRunner{})

	result := h.engine.Invoke(context.Background(), dispatch.Request{OperationCode: "GET_USER"})

	require.True(t, result.OK)
	require.NotNil(t, result.Data)
	assert.NotNil(t, result.Data.Tables)
	assert.Zero(t, result.Meta.TableCount)
}

/*
TestInvoke_UnknownCode verifies that an unknown code fails without a call and
is counted under a fixed metrics label.
*/
func TestInvoke_UnknownCode(t *testing.T) {
	h := newHarness(&fakeRunner{tables: annTable()})

	// 1. Invoke
	result := h.engine.Invoke(context.Background(), dispatch.Request{OperationCode: "NOPE", Meta: meta()})

	// 2. Envelope
	assert.False(t, result.OK)
	assert.Nil(t, result.Data)
	assertGolden(t, "invoke_not_found", result)

	// 3. No call, still audited
	assert.Empty(t, h.runner.calls)
	require.Len(t, h.recorder.records, 1)
	assert.False(t, h.recorder.records[0].Success)

	// 4. Metrics
	expected := `
# HELP procbridge_invocations_total Operation invocations by code and outcome.
# TYPE procbridge_invocations_total counter
procbridge_invocations_total{code="_unresolved",outcome="not_found"} 1
`
	require.NoError(t, testutil.GatherAndCompare(h.metrics.Registry(), strings.NewReader(expected), "procbridge_invocations_total"))
}

/*
TestInvoke_Refusals verifies the failures that stop before the routine runs.
*/
func TestInvoke_Refusals(t *testing.T) {
	cases := []struct {
		name    string
		request dispatch.Request
		code    string
		message string
	}{
		{
			name:    "empty code",
			request: dispatch.Request{OperationCode: "   "},
			code:    apperr.CodeValidation,
			message: "operation code is required",
		},
		{
			name:    "codes are case-sensitive",
			request: dispatch.Request{OperationCode: "get_user"},
			code:    apperr.CodeNotFound,
			message: "operation 'get_user' not found in catalog",
		},
		{
			name:    "inactive",
			request: dispatch.Request{OperationCode: "OLD_REPORT"},
			code:    apperr.CodeNotFound,
			message: "operation 'OLD_REPORT' is inactive",
		},
		{
			name:    "anonymous caller",
			request: dispatch.Request{OperationCode: "WHOAMI"},
			code:    apperr.CodeAuthRequired,
			message: "operation 'WHOAMI' requires an authenticated caller",
		},
		{
			name: "self-declared caller id is not an identity",
			request: dispatch.Request{
				OperationCode: "WHOAMI",
				Meta:          dispatch.CallerMeta{CallerID: "id-fin"},
			},
			code:    apperr.CodeAuthRequired,
			message: "operation 'WHOAMI' requires an authenticated caller",
		},
		{
			name: "role denied",
			request: dispatch.Request{
				OperationCode: "CLOSE_MONTH",
				Caller:        &catalog.Caller{IdentityID: "id-ops", Roles: []string{"finance"}},
			},
			code:    apperr.CodeForbidden,
			message: "caller lacks a role allowed to run 'CLOSE_MONTH'",
		},
		{
			name:    "unsupported payload",
			request: dispatch.Request{OperationCode: "GET_USER", Payload: []int{1, 2}},
			code:    apperr.CodeValidation,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(&fakeRunner{tables: annTable()})

			result := h.engine.Invoke(context.Background(), tc.request)

			assert.False(t, result.OK)
			assert.Equal(t, tc.code, result.ErrorCode)
			if tc.message != "" {
				assert.Equal(t, tc.message, result.ErrorMessage)
			}
			assert.Empty(t, h.runner.calls)
			assert.Len(t, h.recorder.records, 1)
		})
	}
}

/*
TestInvoke_RoleGranted verifies that the identity store, not the token roles,
decides role membership and that transactional entries run transactionally.
*/
func TestInvoke_RoleGranted(t *testing.T) {
	h := newHarness(&fakeRunner{})

	result := h.engine.Invoke(context.Background(), dispatch.Request{
		OperationCode: "CLOSE_MONTH",
		Payload:       json.RawMessage(`{"p_month": "2026-01"}`),
		Caller:        &catalog.Caller{IdentityID: "id-fin"},
	})

	require.True(t, result.OK, result.ErrorMessage)
	require.Len(t, h.runner.calls, 1)
	assert.True(t, h.runner.calls[0].transactional)
	assert.Equal(t, "finance.sp_close_month", h.runner.calls[0].target)
	assert.Equal(t, "p_month", h.runner.calls[0].args[0].Name)
}

/*
TestInvoke_ExecutionFailures verifies that runner errors and panics surface
inside the envelope.
*/
func TestInvoke_ExecutionFailures(t *testing.T) {
	// 1. Classified database error passes through
	h := newHarness(&fakeRunner{err: apperr.Database(errors.New("pg"), "division by zero")})
	result := h.engine.Invoke(context.Background(), dispatch.Request{OperationCode: "GET_USER"})
	assert.False(t, result.OK)
	assert.Equal(t, apperr.CodeDatabase, result.ErrorCode)
	assert.Equal(t, "sp_get_user", result.Meta.TargetName)

	// 2. Unclassified error becomes an execution error
	h = newHarness(&fakeRunner{err: errors.New("connection refused")})
	result = h.engine.Invoke(context.Background(), dispatch.Request{OperationCode: "GET_USER"})
	assert.Equal(t, apperr.CodeExecution, result.ErrorCode)
	assert.Equal(t, "Error: connection refused", result.ErrorMessage)

	// 3. Panic is recovered and audited
	h = newHarness(&fakeRunner{panic: "boom"})
	require.NotPanics(t, func() {
		result = h.engine.Invoke(context.Background(), dispatch.Request{OperationCode: "GET_USER"})
	})
	assert.False(t, result.OK)
	assert.Equal(t, apperr.CodeExecution, result.ErrorCode)
	require.Len(t, h.recorder.records, 1)
	assert.False(t, h.recorder.records[0].Success)
}

type brokenSink struct{}

func (brokenSink) Write(context.Context, *audit.Record) error {
	return errors.New("audit store unreachable")
}

/*
TestInvoke_AuditOutage verifies that a failing audit store leaves the result
untouched.
*/
func TestInvoke_AuditOutage(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	auditor := audit.New(brokenSink{}, audit.Config{}, logger, nil)

	engine := dispatch.New(
		catalog.NewRegistry(catalogFixture()),
		nil,
		payload.NewAdapter("p_"),
		&fakeRunner{tables: annTable()},
		auditor,
	)

	result := engine.Invoke(context.Background(), dispatch.Request{
		OperationCode: "GET_USER",
		Payload:       map[string]any{"id": 7},
	})

	require.True(t, result.OK)
	assert.Equal(t, annTable(), result.Data.Tables)
	assert.Equal(t, uint64(1), auditor.Failures())
}
