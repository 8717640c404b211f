// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

/*
Package auth implements the identity and session subsystem that gates which
operations a caller may invoke.

Architecture:

  - Service: credential verification, token issuance, rotation and revocation.
  - Repositories: PostgreSQL identities and refresh-token records.
  - Handler: the /api/v1/auth HTTP surface.

Access tokens are stateless JWTs verified by signature and expiry only. A
leaked access token stays valid until it expires; revocation applies to
refresh tokens.

Refresh tokens are single-use. Rotation revokes the presented token before a
new one is minted, so two tokens from the same chain are never valid at once.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/sec"
	"github.com/JorgeMataSaucedo/ProcBridge/pkg/uuidv7"
)

// # Contracts & Types

// TokenProvider issues and verifies access tokens.
type TokenProvider interface {
	// GenerateAccessToken signs a token for subject and returns it with its expiry.
	GenerateAccessToken(subject sec.Subject, timeToLive time.Duration) (string, time.Time, error)

	// VerifyToken checks signature and expiry and returns the claims.
	VerifyToken(token string) (*sec.AuthClaims, error)
}

// Service implements the authentication use cases.
type Service struct {
	identities IdentityRepository
	tokens     RefreshTokenRepository
	provider   TokenProvider

	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option customises a [Service].
type Option func(*Service)

// WithTTLs overrides the token lifetimes. Non-positive values are ignored.
func WithTTLs(access, refresh time.Duration) Option {
	return func(service *Service) {
		if access > 0 {
			service.accessTTL = access
		}
		if refresh > 0 {
			service.refreshTTL = refresh
		}
	}
}

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(service *Service) { service.now = now }
}

// WithLogger sets the logger used for background and security events.
func WithLogger(logger *slog.Logger) Option {
	return func(service *Service) { service.logger = logger }
}

// NewService constructs a [Service] with its dependencies.
func NewService(identities IdentityRepository, tokens RefreshTokenRepository, provider TokenProvider, opts ...Option) *Service {
	service := &Service{
		identities: identities,
		tokens:     tokens,
		provider:   provider,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// # Authentication Flow

/*
Login verifies credentials and issues a fresh session.

Description: The email is trimmed and lower-cased. Unknown, inactive and
wrong-password attempts all fail the same way so that accounts cannot be
enumerated.

Parameters:
  - ctx: context.Context
  - email: string
  - password: string

Returns:
  - *Session: access token, refresh token and identity summary
  - error: Unauthorized or storage failures
*/
func (service *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}

	// ── 1. Identity ──────────────────────────────────────────────────────
	identity, err := service.identities.FindByEmail(ctx, email)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.Unauthorized(msgInvalidCredentials)
		}
		return nil, fmt.Errorf("auth_service_login_lookup_failed: %w", err)
	}

	// ── 2. Credential ────────────────────────────────────────────────────
	if !identity.Active || !sec.CheckPasswordHash(password, identity.PasswordHash) {
		return nil, apperr.Unauthorized(msgInvalidCredentials)
	}

	// ── 3. Bookkeeping ───────────────────────────────────────────────────
	now := service.now()
	if err := service.identities.TouchLastAuthenticated(ctx, identity.ID, now); err != nil {
		return nil, fmt.Errorf("auth_service_login_touch_failed: %w", err)
	}
	identity.LastAuthenticatedAt = &now

	return service.issue(ctx, identity)
}

/*
Refresh exchanges a refresh token for a new session.

Description: The presented token is consumed first, so it is revoked before
anything new exists. The identity is then reloaded; a deleted or deactivated
identity gets nothing. If minting fails after the token was consumed the
caller must log in again.

Parameters:
  - ctx: context.Context
  - refreshToken: string

Returns:
  - *Session: rotated credentials
  - error: Unauthorized or storage failures
*/
func (service *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, apperr.Unauthorized(msgInvalidRefresh)
	}

	// ── 1. Revoke ────────────────────────────────────────────────────────
	identityID, err := service.tokens.Consume(ctx, sec.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, ErrTokenNotActive) {
			return nil, apperr.Unauthorized(msgInvalidRefresh)
		}
		return nil, fmt.Errorf("auth_service_refresh_consume_failed: %w", err)
	}

	// ── 2. Identity still usable ─────────────────────────────────────────
	identity, err := service.identities.FindByID(ctx, identityID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.Unauthorized(msgIdentityUnusable)
		}
		return nil, fmt.Errorf("auth_service_refresh_lookup_failed: %w", err)
	}
	if !identity.Active {
		return nil, apperr.Unauthorized(msgIdentityUnusable)
	}

	// ── 3. Issue ─────────────────────────────────────────────────────────
	return service.issue(ctx, identity)
}

// Logout revokes refreshToken. Unknown and already revoked tokens succeed.
func (service *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := service.tokens.Revoke(ctx, sec.HashToken(refreshToken)); err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}
	return nil
}

// issue mints an access token and a fresh refresh record for identity.
func (service *Service) issue(ctx context.Context, identity *Identity) (*Session, error) {
	accessToken, expiresAt, err := service.provider.GenerateAccessToken(sec.Subject{
		ID:    identity.ID,
		Email: identity.Email,
		Name:  identity.DisplayName,
		Roles: identity.Roles,
	}, service.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_access_token_failed: %w", err)
	}

	rawRefresh, err := sec.GenerateSecureToken(RefreshTokenLength)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	now := service.now()
	record := &RefreshToken{
		ID:         uuidv7.New(),
		IdentityID: identity.ID,
		TokenHash:  sec.HashToken(rawRefresh),
		ExpiresAt:  now.Add(service.refreshTTL),
		CreatedAt:  now,
	}
	if err := service.tokens.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("auth_service_refresh_persist_failed: %w", err)
	}

	return &Session{
		AccessToken:      accessToken,
		RefreshToken:     rawRefresh,
		ExpiresAt:        expiresAt,
		User:             identity.Summary(),
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

// # Authorization Queries

// ValidateRoles reports whether identityID holds at least one of allowed,
// ignoring case. An empty allowed set is always satisfied.
func (service *Service) ValidateRoles(ctx context.Context, identityID string, allowed []string) (bool, error) {
	if len(allowed) == 0 {
		return true, nil
	}

	roles, err := service.identities.Roles(ctx, identityID)
	if err != nil {
		return false, fmt.Errorf("auth_service_roles_failed: %w", err)
	}

	return sec.HasAnyRole(roles, allowed), nil
}

// GetIdentity returns the identity with its current roles, or NotFound.
func (service *Service) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	return service.identities.FindByID(ctx, id)
}

// VerifyAccessToken checks signature and expiry only.
func (service *Service) VerifyAccessToken(token string) (*sec.AuthClaims, error) {
	return service.provider.VerifyToken(token)
}

// VerifyToken lets the service serve as the middleware token verifier.
func (service *Service) VerifyToken(token string) (*sec.AuthClaims, error) {
	return service.VerifyAccessToken(token)
}

// WhoAmI resolves an access token to the current identity summary.
func (service *Service) WhoAmI(ctx context.Context, accessToken string) (*Summary, error) {
	claims, err := service.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, apperr.Unauthorized("Invalid or expired access token")
	}

	identity, err := service.identities.FindByID(ctx, claims.UserID)
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.Unauthorized(msgIdentityUnusable)
		}
		return nil, err
	}

	summary := identity.Summary()
	return &summary, nil
}

// # Maintenance

// PurgeExpired deletes refresh records that expired more than
// [ExpiredTokenRetention] ago.
func (service *Service) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := service.tokens.DeleteExpired(ctx, service.now().Add(-ExpiredTokenRetention))
	if err != nil {
		return 0, fmt.Errorf("auth_service_purge_failed: %w", err)
	}
	if removed > 0 {
		service.logger.Info("refresh_tokens_purged", slog.Int64("removed", removed))
	}
	return removed, nil
}
