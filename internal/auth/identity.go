// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package auth

import (
	"time"
)

// Identity is a provisioned principal allowed to authenticate.
//
// # Rules
//   - Email is unique, compared case-insensitively.
//   - PasswordHash is a bcrypt hash and never leaves the service.
//   - Only LastAuthenticatedAt is ever written by this package.
type Identity struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	PasswordHash        string     `json:"-"`
	DisplayName         string     `json:"displayName"`
	Active              bool       `json:"active"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           *time.Time `json:"updatedAt,omitempty"`
	LastAuthenticatedAt *time.Time `json:"lastAuthenticatedAt,omitempty"`
	Roles               []string   `json:"roles"`
}

// Summary is the public view of an identity.
type Summary struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	Roles       []string `json:"roles"`
}

// Summary returns the public view of identity.
func (identity *Identity) Summary() Summary {
	roles := identity.Roles
	if roles == nil {
		roles = []string{}
	}
	return Summary{
		ID:          identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Roles:       roles,
	}
}

// RefreshToken is the stored half of a refresh token. The raw token is
// handed to the client once; only its SHA-256 hash is kept.
type RefreshToken struct {
	ID         string
	IdentityID string
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  *time.Time
	CreatedAt  time.Time
}

// Session is what a successful login or refresh returns.
type Session struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	User         Summary   `json:"user"`

	// RefreshExpiresAt drives the refresh cookie lifetime.
	RefreshExpiresAt time.Time `json:"-"`
}
