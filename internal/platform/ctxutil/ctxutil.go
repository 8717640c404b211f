// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

// Package ctxutil carries per-request values through [context.Context]: the
// request id, the resolved client address, the request logger and the
// verified access-token claims. The dispatch handler reads all four when it
// builds the caller metadata of an invocation.
package ctxutil

import (
	"context"
	"log/slog"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/sec"
)

// key is unexported so no other package can collide with these entries.
type key uint8

const (
	keyRequestID key = iota
	keyClientIP
	keyLogger
	keyAuthUser
)

// lookup returns the value stored under k, or the zero value of T.
func lookup[T any](ctx context.Context, k key) T {
	value, _ := ctx.Value(k).(T)
	return value
}

// # Request Tracing

// WithRequestID attaches the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyRequestID, id)
}

// GetRequestID returns the request id, or "" outside an HTTP request.
func GetRequestID(ctx context.Context) string {
	return lookup[string](ctx, keyRequestID)
}

// WithClientIP attaches the resolved client address.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

// GetClientIP returns the client address, or "" when unknown.
func GetClientIP(ctx context.Context) string {
	return lookup[string](ctx, keyClientIP)
}

// # Structured Logging

// WithLogger attaches a request-scoped logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, keyLogger, logger)
}

// GetLogger returns the request logger, falling back to [slog.Default].
func GetLogger(ctx context.Context) *slog.Logger {
	if logger := lookup[*slog.Logger](ctx, keyLogger); logger != nil {
		return logger
	}
	return slog.Default()
}

// # Identity

// WithAuthUser attaches verified access-token claims.
func WithAuthUser(ctx context.Context, user *sec.AuthClaims) context.Context {
	return context.WithValue(ctx, keyAuthUser, user)
}

// GetAuthUser returns the verified claims, or nil for anonymous requests.
func GetAuthUser(ctx context.Context) *sec.AuthClaims {
	return lookup[*sec.AuthClaims](ctx, keyAuthUser)
}
