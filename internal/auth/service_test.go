// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/auth"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/sec"
)

// # Fakes

type memIdentities struct {
	mu       sync.Mutex
	byID     map[string]*auth.Identity
	touched  map[string]time.Time
	rolesErr error
}

func newMemIdentities(identities ...*auth.Identity) *memIdentities {
	store := &memIdentities{byID: map[string]*auth.Identity{}, touched: map[string]time.Time{}}
	for _, identity := range identities {
		store.byID[identity.ID] = identity
	}
	return store
}

func (store *memIdentities) FindByEmail(_ context.Context, email string) (*auth.Identity, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	for _, identity := range store.byID {
		if strings.EqualFold(identity.Email, email) {
			clone := *identity
			return &clone, nil
		}
	}
	return nil, apperr.NotFound("Identity")
}

func (store *memIdentities) FindByID(_ context.Context, id string) (*auth.Identity, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	identity, ok := store.byID[id]
	if !ok {
		return nil, apperr.NotFound("Identity")
	}
	clone := *identity
	return &clone, nil
}

func (store *memIdentities) Roles(_ context.Context, id string) ([]string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.rolesErr != nil {
		return nil, store.rolesErr
	}
	if identity, ok := store.byID[id]; ok {
		return identity.Roles, nil
	}
	return nil, nil
}

func (store *memIdentities) TouchLastAuthenticated(_ context.Context, id string, at time.Time) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.touched[id] = at
	return nil
}

func (store *memIdentities) setActive(id string, active bool) {
	store.mu.Lock()
	defer store.mu.Unlock()
	store.byID[id].Active = active
}

type memTokens struct {
	mu     sync.Mutex
	now    func() time.Time
	byHash map[string]*auth.RefreshToken
}

func newMemTokens(now func() time.Time) *memTokens {
	return &memTokens{now: now, byHash: map[string]*auth.RefreshToken{}}
}

func (store *memTokens) Create(_ context.Context, token *auth.RefreshToken) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	clone := *token
	store.byHash[token.TokenHash] = &clone
	return nil
}

func (store *memTokens) Consume(_ context.Context, hash string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	token, ok := store.byHash[hash]
	if !ok || token.RevokedAt != nil || !token.ExpiresAt.After(store.now()) {
		return "", auth.ErrTokenNotActive
	}
	now := store.now()
	token.RevokedAt = &now
	return token.IdentityID, nil
}

func (store *memTokens) Revoke(_ context.Context, hash string) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if token, ok := store.byHash[hash]; ok && token.RevokedAt == nil {
		now := store.now()
		token.RevokedAt = &now
	}
	return nil
}

func (store *memTokens) DeleteExpired(_ context.Context, cutoff time.Time) (int64, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	var removed int64
	for hash, token := range store.byHash {
		if token.ExpiresAt.Before(cutoff) {
			delete(store.byHash, hash)
			removed++
		}
	}
	return removed, nil
}

func (store *memTokens) count() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.byHash)
}

// # Fixture

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	service    *auth.Service
	identities *memIdentities
	tokens     *memTokens
	provider   *sec.TokenService
	clock      *clock
}

const (
	annID       = "0191d2a0-0000-7000-8000-000000000001"
	annPassword = "correct horse battery staple"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	hash, err := sec.HashPassword(annPassword)
	require.NoError(t, err)

	c := &clock{now: time.Now().UTC().Truncate(time.Second)}
	provider, err := sec.NewTokenService(sec.TokenConfig{
		Secret:   "test-secret-test-secret-test-secret",
		Issuer:   "procbridge",
		Audience: "procbridge-api",
	}, sec.WithTokenClock(c.Now))
	require.NoError(t, err)

	identities := newMemIdentities(&auth.Identity{
		ID:           annID,
		Email:        "ann@example.com",
		PasswordHash: hash,
		DisplayName:  "Ann",
		Active:       true,
		Roles:        []string{"Admin", "ops"},
	})
	tokens := newMemTokens(c.Now)

	service := auth.NewService(identities, tokens, provider,
		auth.WithClock(c.Now),
		auth.WithTTLs(10*time.Minute, time.Hour),
	)

	return &fixture{service: service, identities: identities, tokens: tokens, provider: provider, clock: c}
}

// # Tests

/*
TestLogin_Success verifies that valid credentials yield a verifiable access
token, an opaque refresh token and a stamped login time.
*/
func TestLogin_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 1. Login with a differently cased, padded email
	session, err := f.service.Login(ctx, "  ANN@example.com ", annPassword)
	require.NoError(t, err)

	// 2. Session shape
	assert.NotEmpty(t, session.RefreshToken)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), session.ExpiresAt)
	assert.Equal(t, f.clock.Now().Add(time.Hour), session.RefreshExpiresAt)
	assert.Equal(t, auth.Summary{ID: annID, Email: "ann@example.com", DisplayName: "Ann", Roles: []string{"Admin", "ops"}}, session.User)

	// 3. Access token carries the identity
	claims, err := f.service.VerifyAccessToken(session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, annID, claims.UserID)
	assert.Equal(t, []string{"Admin", "ops"}, claims.Roles)

	// 4. Only the hash is stored
	assert.Equal(t, 1, f.tokens.count())
	_, raw := f.tokens.byHash[session.RefreshToken]
	assert.False(t, raw)
	_, hashed := f.tokens.byHash[sec.HashToken(session.RefreshToken)]
	assert.True(t, hashed)

	assert.Equal(t, f.clock.Now(), f.identities.touched[annID])
}

/*
TestLogin_Rejections verifies that every failure mode returns the same
Unauthorized error.
*/
func TestLogin_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := newFixture(t)
	inactive.identities.setActive(annID, false)

	cases := []struct {
		name     string
		service  *auth.Service
		email    string
		password string
	}{
		{"wrong password", f.service, "ann@example.com", "nope"},
		{"unknown email", f.service, "bob@example.com", annPassword},
		{"empty email", f.service, "", annPassword},
		{"empty password", f.service, "ann@example.com", ""},
		{"inactive identity", inactive.service, "ann@example.com", annPassword},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.service.Login(ctx, tc.email, tc.password)
			require.Error(t, err)
			assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))
			assert.Equal(t, "Invalid login credentials", err.Error())
		})
	}

	assert.Zero(t, f.tokens.count())
}

/*
TestRefresh_RotatesAndRevokes verifies that a refresh issues a new pair and
that the old refresh token can never be used again.
*/
func TestRefresh_RotatesAndRevokes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 1. Login
	first, err := f.service.Login(ctx, "ann@example.com", annPassword)
	require.NoError(t, err)

	// 2. Rotate
	f.clock.Advance(time.Minute)
	second, err := f.service.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, annID, second.User.ID)

	// 3. Old token is dead
	_, err = f.service.Refresh(ctx, first.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))

	// 4. New token still works once
	_, err = f.service.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

/*
TestRefresh_Expired verifies that a refresh token past its expiry is rejected.
*/
func TestRefresh_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.service.Login(ctx, "ann@example.com", annPassword)
	require.NoError(t, err)

	f.clock.Advance(time.Hour + time.Second)

	_, err = f.service.Refresh(ctx, session.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "Invalid or expired refresh token", err.Error())
}

/*
TestRefresh_InactiveIdentity verifies that a deactivated identity gets nothing
and its presented token is still consumed.
*/
func TestRefresh_InactiveIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.service.Login(ctx, "ann@example.com", annPassword)
	require.NoError(t, err)

	// 1. Deactivate and refresh
	f.identities.setActive(annID, false)
	_, err = f.service.Refresh(ctx, session.RefreshToken)
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))

	// 2. Reactivation does not revive the consumed token
	f.identities.setActive(annID, true)
	_, err = f.service.Refresh(ctx, session.RefreshToken)
	require.Error(t, err)
}

/*
TestRefresh_ConcurrentSingleUse verifies that of many concurrent refreshes
with the same token exactly one succeeds.
*/
func TestRefresh_ConcurrentSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.service.Login(ctx, "ann@example.com", annPassword)
	require.NoError(t, err)

	const callers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		rejected  atomic.Int32
	)
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.service.Refresh(ctx, session.RefreshToken)
			switch {
			case err == nil:
				successes.Add(1)
			case apperr.HasCode(err, apperr.CodeUnauthorized):
				rejected.Add(1)
			}
		}()
	}

	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(callers-1), rejected.Load())
}

/*
TestLogout_Idempotent verifies that logout revokes the token and that
repeating it, or passing garbage, still succeeds.
*/
func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.service.Login(ctx, "ann@example.com", annPassword)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, session.RefreshToken))
	require.NoError(t, f.service.Logout(ctx, session.RefreshToken))
	require.NoError(t, f.service.Logout(ctx, "never-issued"))
	require.NoError(t, f.service.Logout(ctx, ""))

	_, err = f.service.Refresh(ctx, session.RefreshToken)
	require.Error(t, err)
}

/*
TestValidateRoles verifies case-insensitive role matching and the empty
allowed set.
*/
func TestValidateRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ok, err := f.service.ValidateRoles(ctx, annID, []string{"ADMIN"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.service.ValidateRoles(ctx, annID, []string{"finance"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.service.ValidateRoles(ctx, "unknown", nil)
	require.NoError(t, err)
	assert.True(t, ok)

	f.identities.rolesErr = errors.New("connection refused")
	_, err = f.service.ValidateRoles(ctx, annID, []string{"ops"})
	require.Error(t, err)
}

/*
TestWhoAmI verifies resolution of an access token to the current identity.
*/
func TestWhoAmI(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	session, err := f.service.Login(ctx, "ann@example.com", annPassword)
	require.NoError(t, err)

	summary, err := f.service.WhoAmI(ctx, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "Ann", summary.DisplayName)

	_, err = f.service.WhoAmI(ctx, "not-a-token")
	require.Error(t, err)
	assert.True(t, apperr.HasCode(err, apperr.CodeUnauthorized))

	identity, err := f.service.GetIdentity(ctx, annID)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", identity.Email)
}

/*
TestPurgeExpired verifies that only records past the retention window are
removed.
*/
func TestPurgeExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Login(ctx, "ann@example.com", annPassword)
	require.NoError(t, err)

	// 1. Expired but inside retention
	f.clock.Advance(2 * time.Hour)
	removed, err := f.service.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	// 2. Past retention
	f.clock.Advance(auth.ExpiredTokenRetention)
	removed, err = f.service.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
	assert.Zero(t, f.tokens.count())
}
