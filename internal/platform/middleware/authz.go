// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/ctxutil"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/respond"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/sec"
)

const (
	msgMalformedAuthorization = "Authorization header must be 'Bearer <token>'"
	msgInvalidToken           = "Invalid or expired access token"
	msgAuthenticationRequired = "Authentication required"
)

// TokenVerifier checks an access token and returns its claims. The auth
// service satisfies it.
type TokenVerifier interface {
	VerifyToken(tokenStr string) (*sec.AuthClaims, error)
}

// Authenticate attaches verified claims to the request context.
//
// A request without an Authorization header continues anonymously: whether
// an operation needs a caller is decided per catalog entry, not per route.
// A header that is present but malformed, or that carries a bad token, is
// rejected and never degrades to anonymous.
//
// # Flow
//  1. No header: continue anonymously.
//  2. Header not of the form 'Bearer <token>': 401.
//  3. Token fails verification: 401.
//  4. Inject [*sec.AuthClaims] into the context.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			header := request.Header.Get(constants.HeaderAuthorization)

			// ── 1. Anonymous ─────────────────────────────────────────────────
			if header == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Scheme ────────────────────────────────────────────────────
			scheme, token, found := strings.Cut(header, " ")
			token = strings.TrimSpace(token)
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				respond.Error(writer, request, apperr.Unauthorized(msgMalformedAuthorization))
				return
			}

			// ── 3. Verification ──────────────────────────────────────────────
			claims, err := verifier.VerifyToken(token)
			if err != nil {
				ctxutil.GetLogger(request.Context()).DebugContext(request.Context(), "access_token_rejected",
					slog.String("reason", err.Error()),
				)
				respond.Error(writer, request, apperr.Unauthorized(msgInvalidToken))
				return
			}

			// ── 4. Context ───────────────────────────────────────────────────
			next.ServeHTTP(writer, request.WithContext(ctxutil.WithAuthUser(request.Context(), claims)))
		})
	}
}

// RequireAuth rejects anonymous requests. Register it after [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetAuthUser(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized(msgAuthenticationRequired))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole guards administrative routes such as the catalog listing. The
// token must carry at least one of roles, compared case-insensitively. It
// implies [RequireAuth].
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	forbidden := "Requires one of the roles: " + strings.Join(roles, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			claims := ctxutil.GetAuthUser(request.Context())
			if claims == nil {
				respond.Error(writer, request, apperr.Unauthorized(msgAuthenticationRequired))
				return
			}

			if !sec.HasAnyRole(claims.Roles, roles) {
				respond.Error(writer, request, apperr.Forbidden(forbidden))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
