// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/apperr"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/middleware"
	requestutil "github.com/JorgeMataSaucedo/ProcBridge/internal/platform/request"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/respond"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/validate"
)

// Handler implements the authentication HTTP endpoints.
type Handler struct {
	authService *Service
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service) *Handler {
	return &Handler{authService: service}
}

// Routes returns a [chi.Router] configured with authentication routes.
//
// # Endpoints
//   - POST /login   : Verifies credentials and opens a session.
//   - POST /refresh : Rotates a refresh token.
//   - POST /logout  : Revokes a refresh token.
//   - GET  /me      : Returns the caller's identity.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)

	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/me", handler.me)
	})

	return router
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

/*
Login authenticates an identity and opens a session.

POST /api/v1/auth/login

Description: Verifies credentials, signs an access token and sets the
refresh token cookie. The refresh token is also returned in the body for
clients that do not keep cookies.

Request:
  - Body: loginRequest (Email, Password)

Response:
  - 200: Session
  - 400: ValidationError: Missing fields, malformed email or JSON
  - 401: Unauthorized: Invalid credentials
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest

	if err := requestutil.DecodeJSON(writer, request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required(FieldEmail, input.Email).
		Email(FieldEmail, strings.TrimSpace(input.Email)).
		MaxLen(FieldEmail, input.Email, maxEmailLength)
	validator.Required(FieldPassword, input.Password).
		MaxLen(FieldPassword, input.Password, maxPasswordLength)

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.authService.Login(request.Context(), input.Email, input.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, session.RefreshToken, session.RefreshExpiresAt)
	respond.OK(writer, session)
}

/*
Refresh rotates a refresh token.

POST /api/v1/auth/refresh

Description: Accepts the token from the body or, when the body carries none,
from the refresh cookie. The presented token is revoked whether or not the
new session can be issued.

Response:
  - 200: Session
  - 401: Unauthorized: Missing, revoked or expired refresh token
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	token, err := refreshTokenFrom(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	if token == "" {
		respond.Error(writer, request, apperr.Unauthorized(msgInvalidRefresh))
		return
	}

	session, err := handler.authService.Refresh(request.Context(), token)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	setRefreshCookie(writer, session.RefreshToken, session.RefreshExpiresAt)
	respond.OK(writer, session)
}

/*
Logout revokes a refresh token.

POST /api/v1/auth/logout

Description: Revokes the token from the body or cookie and clears the cookie.
Unknown tokens and repeated calls succeed.

Response:
  - 204: No Content
*/
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	token, err := refreshTokenFrom(writer, request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.authService.Logout(request.Context(), token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})

	respond.NoContent(writer)
}

/*
Me returns the identity behind the bearer token.

GET /api/v1/auth/me

Response:
  - 200: Summary
  - 401: Unauthorized: Missing or invalid access token
*/
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	summary, err := handler.authService.WhoAmI(request.Context(), requestutil.BearerToken(request))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, summary)
}

// refreshTokenFrom prefers the JSON body and falls back to the cookie. An
// empty body is allowed.
func refreshTokenFrom(writer http.ResponseWriter, request *http.Request) (string, error) {
	var input refreshRequest

	if request.ContentLength != 0 {
		body := http.MaxBytesReader(writer, request.Body, constants.MaxPayloadBytes)
		data, err := io.ReadAll(body)
		if err != nil {
			return "", validate.ErrInvalidJSON
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &input); err != nil {
				return "", validate.ErrInvalidJSON
			}
		}
	}

	if input.RefreshToken != "" {
		return input.RefreshToken, nil
	}

	cookie, err := request.Cookie(constants.RefreshTokenCookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", nil
		}
		return "", err
	}
	return cookie.Value, nil
}

func setRefreshCookie(writer http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    token,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  expiresAt,
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}
