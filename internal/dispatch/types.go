// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package dispatch

import (
	"time"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/catalog"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/executor"
)

// Request is one invocation as the transport hands it over.
type Request struct {
	OperationCode string
	Payload       any
	Meta          CallerMeta

	// Caller is the verified identity, nil for anonymous calls. Meta.CallerID
	// is descriptive only and never satisfies an identity requirement.
	Caller *catalog.Caller
}

// CallerMeta is caller-supplied context copied into the result and the audit.
type CallerMeta struct {
	CallerID      string `json:"callerId,omitempty"`
	CallerName    string `json:"callerName,omitempty"`
	ClientApp     string `json:"clientApp,omitempty"`
	SourceAddress string `json:"-"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// Result is the envelope returned for every invocation, failed or not.
type Result struct {
	OK           bool       `json:"ok"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	ErrorCode    string     `json:"errorCode,omitempty"`
	Data         *Data      `json:"data,omitempty"`
	Meta         ResultMeta `json:"meta"`
}

// Data holds the captured result tables in call order.
type Data struct {
	Tables []executor.Table `json:"tables"`
}

// ResultMeta describes the invocation itself.
type ResultMeta struct {
	InvocationID  string    `json:"invocationId"`
	OperationCode string    `json:"operationCode"`
	TargetName    string    `json:"targetName,omitempty"`
	DurationMs    int64     `json:"durationMs"`
	TableCount    int       `json:"tableCount"`
	ExecutedAt    time.Time `json:"executedAt"`
	CallerID      string    `json:"callerId,omitempty"`
	ClientApp     string    `json:"clientApp,omitempty"`
	CorrelationID string    `json:"correlationId,omitempty"`
}
