// Copyright (c) 2026 ProcBridge. All rights reserved.
// Author: JorgeMataSaucedo

/*
Package api wires together the HTTP router, middleware chain, and all
handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost presentation boundary.
  - It is the composition root for the chi router.
  - Only this package and cmd/api import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JorgeMataSaucedo/ProcBridge/internal/auth"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/catalog"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/dispatch"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/config"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/constants"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/metrics"
	"github.com/JorgeMataSaucedo/ProcBridge/internal/platform/middleware"
)

// AdminRole is the role allowed to read the catalog over HTTP.
const AdminRole = "admin"

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in main.go with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups every HTTP handler set.
type Handlers struct {
	// Liveness is the /health handler; it returns 200 while the process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler; it returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Auth handles login, refresh, logout and whoami.
	Auth *auth.Handler

	// Dispatch handles operation invocations.
	Dispatch *dispatch.Handler

	// Catalog exposes the operation catalog to administrators.
	Catalog *catalog.Handler

	// Metrics serves /metrics and instruments every route. May be nil.
	Metrics *metrics.Metrics
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
//
// Invocation routes get a deadline of the execution timeout plus
// [constants.WriteTimeoutMargin]; every other route keeps
// [constants.GlobalRequestTimeout].
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger, verifier middleware.TokenVerifier, h Handlers) *Server {
	r := chi.NewRouter()

	invocationDeadline := cfg.ExecTimeout + constants.WriteTimeoutMargin

	// # Middleware Chain
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(h.Metrics.Instrument)
	r.Use(middleware.RateLimit(ctx, constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.Authenticate(verifier))
	r.Use(middleware.CORS(cfg))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	r.Group(func(infra chi.Router) {
		infra.Use(chimw.Timeout(constants.GlobalRequestTimeout))
		infra.Get("/health", h.Liveness)
		infra.Get("/ready", h.Readiness)
		infra.Method(http.MethodGet, "/metrics", h.Metrics.Handler())
	})

	// # Application API
	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(invoke chi.Router) {
			invoke.Use(chimw.Timeout(invocationDeadline))
			invoke.Mount("/", h.Dispatch.Routes())
		})

		api.Group(func(rest chi.Router) {
			rest.Use(chimw.Timeout(constants.GlobalRequestTimeout))
			rest.Mount("/auth", h.Auth.Routes())
			rest.Route("/catalog", func(admin chi.Router) {
				admin.Use(middleware.RequireRole(AdminRole))
				admin.Mount("/", h.Catalog.Routes())
			})
		})
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      invocationDeadline,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server_starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
