// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package auth

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotActive is returned by [RefreshTokenRepository.Consume] when the
// token is unknown, already revoked or expired.
var ErrTokenNotActive = errors.New("refresh token not active")

// IdentityRepository is read access to provisioned identities.
//
// # Implementations
//
// The canonical implementation is PostgreSQL ([PostgresIdentityRepository]).
type IdentityRepository interface {
	// FindByEmail returns the identity with the given email, ignoring case.
	//
	// Returns [apperr.NotFound] if there is none.
	FindByEmail(ctx context.Context, email string) (*Identity, error)

	// FindByID returns the identity with the given ID.
	//
	// Returns [apperr.NotFound] if there is none.
	FindByID(ctx context.Context, id string) (*Identity, error)

	// Roles returns the role names assigned to the identity.
	Roles(ctx context.Context, identityID string) ([]string, error)

	// TouchLastAuthenticated records a successful login.
	TouchLastAuthenticated(ctx context.Context, identityID string, at time.Time) error
}

// RefreshTokenRepository is the durable store of refresh token records.
type RefreshTokenRepository interface {
	// Create persists a new record.
	Create(ctx context.Context, token *RefreshToken) error

	// Consume revokes the active record with tokenHash and returns its
	// identity, as one atomic step. Of several concurrent callers with the
	// same hash, exactly one succeeds; the rest get [ErrTokenNotActive].
	Consume(ctx context.Context, tokenHash string) (string, error)

	// Revoke marks the record with tokenHash revoked. Unknown or already
	// revoked hashes are not an error.
	Revoke(ctx context.Context, tokenHash string) error

	// DeleteExpired removes records that expired before cutoff and returns
	// how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}
