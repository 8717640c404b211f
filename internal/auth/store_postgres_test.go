// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package auth_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/auth"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/postgres/pgtest"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/sec"
	"github.com/JorgeMataSaucedo/ProcBridge/pkg/uuidv7"
)

// seedAccount inserts an active account with the admin role and removes it
// (and its refresh records, by cascade) when the test ends.
func seedAccount(t *testing.T, pool *pgxpool.Pool) (id, email string) {
	t.Helper()
	ctx := context.Background()

	id = uuidv7.New()
	email = fmt.Sprintf("Store.%s@Example.com", id)

	_, err := pool.Exec(ctx,
		`INSERT INTO users.account (id, email, passwordhash, displayname) VALUES ($1, $2, $3, $4)`,
		id, email, "$2a$10$placeholder", "Store Test")
	require.NoError(t, err)

	_, err = pool.Exec(ctx,
		`INSERT INTO users.accountrole (accountid, roleid) SELECT $1, id FROM users.role WHERE name = 'admin'`, id)
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM users.account WHERE id = $1`, id)
	})
	return id, email
}

func newRecord(t *testing.T, identityID string, expiresAt time.Time) *auth.RefreshToken {
	t.Helper()

	raw, err := sec.GenerateSecureToken(32)
	require.NoError(t, err)

	return &auth.RefreshToken{
		ID:         uuidv7.New(),
		IdentityID: identityID,
		TokenHash:  sec.HashToken(raw),
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now(),
	}
}

/*
TestPostgresRefreshTokenRepository_Consume verifies a refresh record can be
consumed exactly once and never after expiry or revocation.
*/
func TestPostgresRefreshTokenRepository_Consume(t *testing.T) {
	pool := pgtest.Pool(t)
	repository := auth.NewRefreshTokenRepository(pool)
	ctx := context.Background()
	identityID, _ := seedAccount(t, pool)

	t.Run("single use", func(t *testing.T) {
		record := newRecord(t, identityID, time.Now().Add(time.Hour))
		require.NoError(t, repository.Create(ctx, record))

		// 1. First consume returns the owner
		owner, err := repository.Consume(ctx, record.TokenHash)
		require.NoError(t, err)
		assert.Equal(t, identityID, owner)

		// 2. Second consume matches nothing
		_, err = repository.Consume(ctx, record.TokenHash)
		assert.ErrorIs(t, err, auth.ErrTokenNotActive)
	})

	t.Run("expired", func(t *testing.T) {
		record := newRecord(t, identityID, time.Now().Add(-time.Minute))
		require.NoError(t, repository.Create(ctx, record))

		_, err := repository.Consume(ctx, record.TokenHash)
		assert.ErrorIs(t, err, auth.ErrTokenNotActive)
	})

	t.Run("revoked", func(t *testing.T) {
		record := newRecord(t, identityID, time.Now().Add(time.Hour))
		require.NoError(t, repository.Create(ctx, record))

		require.NoError(t, repository.Revoke(ctx, record.TokenHash))
		require.NoError(t, repository.Revoke(ctx, record.TokenHash))

		_, err := repository.Consume(ctx, record.TokenHash)
		assert.ErrorIs(t, err, auth.ErrTokenNotActive)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := repository.Consume(ctx, sec.HashToken("never-issued"))
		assert.ErrorIs(t, err, auth.ErrTokenNotActive)
	})

	t.Run("concurrent", func(t *testing.T) {
		record := newRecord(t, identityID, time.Now().Add(time.Hour))
		require.NoError(t, repository.Create(ctx, record))

		const consumers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			winners   int
			notActive int
		)
		for i := 0; i < consumers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := repository.Consume(ctx, record.TokenHash)

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners++
				case errors.Is(err, auth.ErrTokenNotActive):
					notActive++
				default:
					t.Errorf("unexpected consume error: %v", err)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, winners)
		assert.Equal(t, consumers-1, notActive)
	})
}

/*
TestPostgresRefreshTokenRepository_DeleteExpired verifies only records past
the cutoff are purged.
*/
func TestPostgresRefreshTokenRepository_DeleteExpired(t *testing.T) {
	pool := pgtest.Pool(t)
	repository := auth.NewRefreshTokenRepository(pool)
	ctx := context.Background()
	identityID, _ := seedAccount(t, pool)

	// 1. One stale, one live
	stale := newRecord(t, identityID, time.Now().Add(-48*time.Hour))
	live := newRecord(t, identityID, time.Now().Add(time.Hour))
	require.NoError(t, repository.Create(ctx, stale))
	require.NoError(t, repository.Create(ctx, live))

	// 2. Purge
	removed, err := repository.DeleteExpired(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))

	// 3. Live record survives
	owner, err := repository.Consume(ctx, live.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, identityID, owner)
}

/*
TestPostgresIdentityRepository verifies lookups by email and id load roles.
*/
func TestPostgresIdentityRepository(t *testing.T) {
	pool := pgtest.Pool(t)
	repository := auth.NewIdentityRepository(pool)
	ctx := context.Background()
	identityID, email := seedAccount(t, pool)

	// 1. Email match ignores case
	identity, err := repository.FindByEmail(ctx, strings.ToLower(email))
	require.NoError(t, err)
	assert.Equal(t, identityID, identity.ID)
	assert.Equal(t, []string{"admin"}, identity.Roles)
	assert.True(t, identity.Active)
	assert.Nil(t, identity.LastAuthenticatedAt)

	// 2. Login stamp
	require.NoError(t, repository.TouchLastAuthenticated(ctx, identityID, time.Now()))
	identity, err = repository.FindByID(ctx, identityID)
	require.NoError(t, err)
	assert.NotNil(t, identity.LastAuthenticatedAt)

	// 3. Unknown id
	_, err = repository.FindByID(ctx, uuidv7.New())
	assert.True(t, apperr.HasCode(err, apperr.CodeNotFound))
}
