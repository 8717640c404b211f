// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/database/schema"
)

// # Identities

// PostgresIdentityRepository implements [IdentityRepository] using pgx.
type PostgresIdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository creates a PostgreSQL implementation of [IdentityRepository].
func NewIdentityRepository(pool *pgxpool.Pool) *PostgresIdentityRepository {
	return &PostgresIdentityRepository{pool: pool}
}

var identitySelect = fmt.Sprintf(`SELECT %s, %s, %s, %s, %s, %s, %s, %s FROM %s`,
	schema.UserAccount.ID, schema.UserAccount.Email, schema.UserAccount.PasswordHash, schema.UserAccount.DisplayName,
	schema.UserAccount.Active, schema.UserAccount.CreatedAt, schema.UserAccount.UpdatedAt,
	schema.UserAccount.LastAuthenticatedAt, schema.UserAccount.Table)

// FindByEmail returns the identity whose email matches, ignoring case.
//
// # Returns
//
// Returns [*Identity] with its roles, or [apperr.NotFound] if no identity exists.
func (repository *PostgresIdentityRepository) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	query := identitySelect + fmt.Sprintf(` WHERE lower(%s) = lower($1)`, schema.UserAccount.Email)
	return repository.findOne(ctx, query, email)
}

// FindByID returns the identity with the given ID and its roles.
func (repository *PostgresIdentityRepository) FindByID(ctx context.Context, id string) (*Identity, error) {
	query := identitySelect + fmt.Sprintf(` WHERE %s = $1`, schema.UserAccount.ID)
	return repository.findOne(ctx, query, id)
}

func (repository *PostgresIdentityRepository) findOne(ctx context.Context, query string, arg string) (*Identity, error) {
	identity := &Identity{}
	err := repository.pool.QueryRow(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.DisplayName,
		&identity.Active,
		&identity.CreatedAt,
		&identity.UpdatedAt,
		&identity.LastAuthenticatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("Identity")
		}
		return nil, fmt.Errorf("postgres_identity_find_failed: %w", err)
	}

	roles, err := repository.Roles(ctx, identity.ID)
	if err != nil {
		return nil, err
	}
	identity.Roles = roles

	return identity, nil
}

// Roles returns the role names assigned to identityID, ordered by name.
func (repository *PostgresIdentityRepository) Roles(ctx context.Context, identityID string) ([]string, error) {
	query := fmt.Sprintf(`
		SELECT r.%s
		FROM %s ar
		JOIN %s r ON r.%s = ar.%s
		WHERE ar.%s = $1
		ORDER BY r.%s`,
		schema.UserRole.Name,
		schema.UserAccountRole.Table,
		schema.UserRole.Table, schema.UserRole.ID, schema.UserAccountRole.RoleID,
		schema.UserAccountRole.AccountID,
		schema.UserRole.Name,
	)

	rows, err := repository.pool.Query(ctx, query, identityID)
	if err != nil {
		return nil, fmt.Errorf("postgres_identity_roles_failed: %w", err)
	}

	roles, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres_identity_roles_failed: %w", err)
	}

	return roles, nil
}

// TouchLastAuthenticated stamps a successful login.
func (repository *PostgresIdentityRepository) TouchLastAuthenticated(ctx context.Context, identityID string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`,
		schema.UserAccount.Table, schema.UserAccount.LastAuthenticatedAt, schema.UserAccount.ID)

	if _, err := repository.pool.Exec(ctx, query, identityID, at); err != nil {
		return fmt.Errorf("postgres_identity_touch_failed: %w", err)
	}
	return nil
}

// # Refresh Tokens

// PostgresRefreshTokenRepository implements [RefreshTokenRepository] using pgx.
type PostgresRefreshTokenRepository struct {
	pool *pgxpool.Pool
}

// NewRefreshTokenRepository creates a PostgreSQL implementation of [RefreshTokenRepository].
func NewRefreshTokenRepository(pool *pgxpool.Pool) *PostgresRefreshTokenRepository {
	return &PostgresRefreshTokenRepository{pool: pool}
}

// Create persists a new refresh token record.
func (repository *PostgresRefreshTokenRepository) Create(ctx context.Context, token *RefreshToken) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s, %s, %s, %s, %s) VALUES ($1, $2, $3, $4, $5)`,
		schema.UserRefreshToken.Table,
		schema.UserRefreshToken.ID, schema.UserRefreshToken.IdentityID, schema.UserRefreshToken.TokenHash,
		schema.UserRefreshToken.ExpiresAt, schema.UserRefreshToken.CreatedAt)

	_, err := repository.pool.Exec(ctx, query,
		token.ID,
		token.IdentityID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres_refresh_token_create_failed: %w", err)
	}
	return nil
}

// Consume revokes the active record in a single conditional UPDATE. The row
// lock taken by the UPDATE serializes concurrent consumers of the same hash;
// whoever commits second re-evaluates the predicate and matches nothing.
func (repository *PostgresRefreshTokenRepository) Consume(ctx context.Context, tokenHash string) (string, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET %s = now()
		WHERE %s = $1 AND %s IS NULL AND %s > now()
		RETURNING %s`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.RevokedAt,
		schema.UserRefreshToken.TokenHash, schema.UserRefreshToken.RevokedAt, schema.UserRefreshToken.ExpiresAt,
		schema.UserRefreshToken.IdentityID)

	var identityID string
	if err := repository.pool.QueryRow(ctx, query, tokenHash).Scan(&identityID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrTokenNotActive
		}
		return "", fmt.Errorf("postgres_refresh_token_consume_failed: %w", err)
	}

	return identityID, nil
}

// Revoke marks the record revoked if it is still active.
func (repository *PostgresRefreshTokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = now() WHERE %s = $1 AND %s IS NULL`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.RevokedAt,
		schema.UserRefreshToken.TokenHash, schema.UserRefreshToken.RevokedAt)

	if _, err := repository.pool.Exec(ctx, query, tokenHash); err != nil {
		return fmt.Errorf("postgres_refresh_token_revoke_failed: %w", err)
	}
	return nil
}

// DeleteExpired physically removes records that expired before cutoff.
func (repository *PostgresRefreshTokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`,
		schema.UserRefreshToken.Table, schema.UserRefreshToken.ExpiresAt)

	tag, err := repository.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres_refresh_token_purge_failed: %w", err)
	}
	return tag.RowsAffected(), nil
}
