// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package auth

import "time"

// # Authentication Constraints

const (
	// DefaultAccessTokenTTL is how long an access token stays valid.
	// Access tokens cannot be revoked, so this stays short.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is how long a refresh token can be exchanged.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// RefreshTokenLength is the byte length of the random refresh token (256 bits).
	RefreshTokenLength = 32

	// ExpiredTokenRetention is how long expired refresh records are kept
	// before the janitor deletes them.
	ExpiredTokenRetention = 24 * time.Hour

	// maxEmailLength matches the account email column.
	maxEmailLength = 320

	// maxPasswordLength is the longest input bcrypt hashes without truncation.
	maxPasswordLength = 72
)

// # Messages

const (
	msgInvalidCredentials = "Invalid login credentials"
	msgInvalidRefresh     = "Invalid or expired refresh token"
	msgIdentityUnusable   = "Identity not found or inactive"
)

// # JSON Fields

const (
	FieldEmail        = "email"
	FieldPassword     = "password"
	FieldRefreshToken = "refreshToken"
)
