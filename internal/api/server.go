// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

/*
Package api wires together the HTTP router, middleware chain, and all
domain handlers into a runnable [http.Server].

Architecture:

  - This package is the topmost Presentation layer boundary.
  - It acts as the central composition root for the HTTP transport framework (chi router).
  - Only this package and cmd/datacat are allowed to import net/http server primitives.
*/
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hep-fcc/datacat/internal/auth"
	"github.com/hep-fcc/datacat/internal/catalog"
	"github.com/hep-fcc/datacat/internal/ingest"
	"github.com/hep-fcc/datacat/internal/navigation"
	"github.com/hep-fcc/datacat/internal/platform/config"
	"github.com/hep-fcc/datacat/internal/platform/constants"
	"github.com/hep-fcc/datacat/internal/platform/middleware"
)

// # Server Definitions

// Server wraps the chi router and the [http.Server].
//
// It is constructed once in the serve command with all dependencies injected.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// # Handler Registry

// Handlers groups all domain-specific HTTP handler sets.
//
// # Usage
//
// New domains add a field here — no other change to server.go is required.
type Handlers struct {
	// Liveness is the /health handler — always returns 200 if process is alive.
	Liveness http.HandlerFunc

	// Readiness is the /ready handler — returns 200 when all deps are healthy.
	Readiness http.HandlerFunc

	// Auth handles the SSO login lifecycle and session status.
	Auth *auth.Handler

	// Catalog handles record search, export, and curation.
	Catalog *catalog.Handler

	// Ingest handles dictionary uploads.
	Ingest *ingest.Handler

	// Navigation handles the schema contract, dropdowns, and generic search.
	Navigation *navigation.Handler
}

// # Server Initialization

// NewServer constructs the chi router with the full middleware chain and
// registers all route groups.
//
// Reads are public; every mutating endpoint is wrapped in a role gate fed
// from the deployment settings. An empty required role admits any
// signed-in user.
func NewServer(
	context context.Context,
	cfg *config.Config,
	settings *config.Settings,
	log *slog.Logger,
	verifier middleware.TokenVerifier,
	h Handlers,
) *Server {
	r := chi.NewRouter()

	// # Middleware Chain
	// Global middleware applied in order of execution.
	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(log))
	r.Use(chimw.Timeout(constants.GlobalRequestTimeout))
	r.Use(middleware.RateLimit(context))
	r.Use(middleware.PanicRecovery(log))
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.Authenticate(verifier, h.Auth.TokenCookieName()))
	r.Use(chimw.CleanPath)

	// # Infrastructure Endpoints
	// Unauthenticated health probes for container orchestration.
	r.Get("/health/live", h.Liveness)
	r.Get("/health/ready", h.Readiness)

	// # Login Flow
	r.Route("/auth", h.Auth.RegisterRoutes)

	// # Application API
	// Domain-specific route groups mounted under the versioned prefix.
	mutate := middleware.RequireRole(settings.General.RequiredCERNRole)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/session-status", h.Auth.SessionStatus)
		h.Catalog.RegisterRoutes(api, mutate)
		h.Ingest.RegisterRoutes(api, mutate)
		h.Navigation.RegisterRoutes(api)
	})

	return &Server{
		router: r,
		log:    log,
		httpServer: &http.Server{
			Addr:              ":" + cfg.ServerPort,
			Handler:           r,
			ReadTimeout:       constants.DefaultReadTimeout,
			WriteTimeout:      constants.DefaultWriteTimeout,
			IdleTimeout:       constants.DefaultIdleTimeout,
			ReadHeaderTimeout: constants.DefaultReadHeaderTimeout,
		},
	}
}

// # Server Lifecycle

// ListenAndServe starts the HTTP server.
//
// It blocks until the server is closed or an error occurs.
func (s *Server) ListenAndServe() error {
	s.log.Info("server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server, waiting for in-flight requests.
func (s *Server) Shutdown(timeout time.Duration) error {
	context, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(context)
}
