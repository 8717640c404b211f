// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/auth"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/middleware"
)

func newRouter(f *fixture) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Authenticate(f.service))
	router.Mount("/api/v1/auth", auth.NewHandler(f.service).Routes())
	return router
}

func call(t *testing.T, handler http.Handler, method, path, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	request := httptest.NewRequest(method, path, strings.NewReader(body))
	request.Header.Set("Content-Type", "application/json")
	if mutate != nil {
		mutate(request)
	}
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func refreshCookie(recorder *httptest.ResponseRecorder) *http.Cookie {
	for _, cookie := range recorder.Result().Cookies() {
		if cookie.Name == constants.RefreshTokenCookieName {
			return cookie
		}
	}
	return nil
}

/*
TestHandler_LoginRefreshLogout verifies the cookie-based session lifecycle end
to end.
*/
func TestHandler_LoginRefreshLogout(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	// 1. Login
	login := call(t, router, http.MethodPost, "/api/v1/auth/login",
		`{"email":"ann@example.com","password":"`+annPassword+`"}`, nil)
	require.Equal(t, http.StatusOK, login.Code)

	var envelope struct {
		Data auth.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(login.Body.Bytes(), &envelope))
	session := envelope.Data
	assert.NotEmpty(t, session.AccessToken)

	cookie := refreshCookie(login)
	require.NotNil(t, cookie)
	assert.Equal(t, session.RefreshToken, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, constants.RefreshTokenCookiePath, cookie.Path)

	// 2. Me with the bearer token
	me := call(t, router, http.MethodGet, "/api/v1/auth/me", "", func(r *http.Request) {
		r.Header.Set(constants.HeaderAuthorization, "Bearer "+session.AccessToken)
	})
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"displayName":"Ann"`)

	// 3. Refresh from the cookie alone
	refresh := call(t, router, http.MethodPost, "/api/v1/auth/refresh", "", func(r *http.Request) {
		r.AddCookie(cookie)
	})
	require.Equal(t, http.StatusOK, refresh.Code)
	rotated := refreshCookie(refresh)
	require.NotNil(t, rotated)
	assert.NotEqual(t, cookie.Value, rotated.Value)

	// 4. Logout with the body token clears the cookie
	logout := call(t, router, http.MethodPost, "/api/v1/auth/logout",
		`{"refreshToken":"`+rotated.Value+`"}`, nil)
	require.Equal(t, http.StatusNoContent, logout.Code)
	cleared := refreshCookie(logout)
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	// 5. The rotated token is gone
	again := call(t, router, http.MethodPost, "/api/v1/auth/refresh",
		`{"refreshToken":"`+rotated.Value+`"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, again.Code)
}

/*
TestHandler_Rejections verifies status codes for malformed and unauthenticated
requests.
*/
func TestHandler_Rejections(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"login malformed json", http.MethodPost, "/api/v1/auth/login", `{"email":`, http.StatusBadRequest},
		{"login missing password", http.MethodPost, "/api/v1/auth/login", `{"email":"ann@example.com"}`, http.StatusBadRequest},
		{"login malformed email", http.MethodPost, "/api/v1/auth/login", `{"email":"ann","password":"x"}`, http.StatusBadRequest},
		{"login wrong password", http.MethodPost, "/api/v1/auth/login", `{"email":"ann@example.com","password":"x"}`, http.StatusUnauthorized},
		{"refresh without token", http.MethodPost, "/api/v1/auth/refresh", ``, http.StatusUnauthorized},
		{"me anonymous", http.MethodGet, "/api/v1/auth/me", ``, http.StatusUnauthorized},
		{"logout without token", http.MethodPost, "/api/v1/auth/logout", ``, http.StatusNoContent},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			recorder := call(t, router, tc.method, tc.path, tc.body, nil)
			assert.Equal(t, tc.status, recorder.Code)
		})
	}
}
