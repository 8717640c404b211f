// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

/*
Package audit persists one record per invocation attempt.

Audit persistence never affects the invocation it describes: failures are
logged, counted and dropped, and panics inside a sink are recovered. The
write runs on a context detached from the caller so a client disconnect does
not cancel it.
*/
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Record is one audited invocation attempt.
type Record struct {
	InvocationID  string
	OperationCode string
	TargetName    string
	PayloadJSON   string
	Success       bool
	ErrorMessage  string
	DurationMs    int64
	TableCount    int
	CallerID      string
	CallerName    string
	ClientApp     string
	SourceAddress string
	CorrelationID string
	ExecutedAt    time.Time
}

// Sink persists records.
type Sink interface {
	Write(ctx context.Context, record *Record) error
}

// SnapshotPayload serializes the payload exactly as the caller sent it. A
// payload that cannot be encoded is recorded as a marker document instead.
// A nil payload yields "".
func SnapshotPayload(payload any) string {
	switch p := payload.(type) {
	case nil:
		return ""
	case json.RawMessage:
		if len(p) == 0 {
			return ""
		}
		if !json.Valid(p) {
			return unserializable(fmt.Errorf("invalid JSON document of %d bytes", len(p)))
		}
		return string(p)
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return unserializable(fmt.Errorf("%T: %w", payload, err))
	}
	return string(encoded)
}

func unserializable(err error) string {
	marker, _ := json.Marshal(map[string]string{"_unserializable": err.Error()})
	return string(marker)
}
