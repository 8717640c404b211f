// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
)

// SQLSTATE codes the platform reacts to.
const (
	codeUniqueViolation = "23505"
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
//
// # Parameters
//   - err: the raw pgx error (may be nil).
//   - resource: the human name used in NotFound / Conflict messages.
func Wrap(err error, resource string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}

	// 2. Constraint violations
	if pgErr, ok := AsPgError(err); ok && pgErr.Code == codeUniqueViolation {
		ae := apperr.Conflict(resource + " already exists")
		ae.Cause = err
		return ae
	}

	// 3. Unknown query errors become Internal Server Errors
	return apperr.Internal(err)
}

// AsPgError extracts the server-side [*pgconn.PgError] from err's chain.
func AsPgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsNoRows reports whether err means the query matched nothing.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
