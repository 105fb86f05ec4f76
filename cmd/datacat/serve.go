// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hep-fcc/datacat/internal/api"
	"github.com/hep-fcc/datacat/internal/auth"
	"github.com/hep-fcc/datacat/internal/catalog"
	"github.com/hep-fcc/datacat/internal/ingest"
	"github.com/hep-fcc/datacat/internal/navigation"
	"github.com/hep-fcc/datacat/internal/platform/constants"
	pgstore "github.com/hep-fcc/datacat/internal/platform/postgres"
	redisstore "github.com/hep-fcc/datacat/internal/platform/redis"
	"github.com/hep-fcc/datacat/internal/platform/sec"
	"github.com/hep-fcc/datacat/internal/watcher"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the catalog API server and the dictionary file watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	startupCtx, startupCancel := context.WithTimeout(context.Background(), startupTimeout)
	defer startupCancel()

	// ── 1. Core: config, settings, logger, postgres, inspector ────────────
	env, err := setup(startupCtx)
	if err != nil {
		return err
	}
	defer env.close()
	log := env.log

	// ── 2. Redis ──────────────────────────────────────────────────────────
	rdb, err := redisstore.NewClient(startupCtx, env.cfg.RedisURL, log)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing redis client")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis close error", slog.Any("error", cerr))
		}
	}()

	// ── 3. Session tokens ─────────────────────────────────────────────────
	tokens, err := sec.NewTokenService(env.cfg.SessionSecret, constants.AuthIssuer)
	if err != nil {
		return err
	}

	// ── 4. Health handlers (wired with real dependency checkers) ──────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return pgstore.Ping(context.Background(), env.pool)
		},
		CheckCache: func() error {
			return redisstore.Ping(context.Background(), rdb)
		},
	}, log)

	// ── 5. Domain Wiring ──────────────────────────────────────────────────
	sessionStore := auth.NewSessionStore(rdb)
	authService := auth.NewService(env.cfg, tokens, sessionStore, log)
	authHandler := auth.NewHandler(authService, env.settings.General.CookiePrefix)

	catalogRepository := catalog.NewPostgresRepository(env.pool, env.inspector, log)
	catalogService := catalog.NewService(catalogRepository, env.inspector, log)
	catalogHandler := catalog.NewHandler(catalogService)

	ingestRepository := ingest.NewPostgresRepository(env.pool, env.inspector, log)
	ingestService := ingest.NewService(ingestRepository, env.inspector, log)
	ingestHandler := ingest.NewHandler(ingestService)

	navigationRepository := navigation.NewPostgresRepository(env.pool, env.inspector, log)
	navigationService := navigation.NewService(navigationRepository, catalogRepository, env.inspector, env.settings, log)
	navigationHandler := navigation.NewHandler(navigationService, log)

	// ── 6. HTTP Server ────────────────────────────────────────────────────
	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	server := api.NewServer(serverCtx, env.cfg, env.settings, log, authService, api.Handlers{
		Liveness:   liveness,
		Readiness:  readiness,
		Auth:       authHandler,
		Catalog:    catalogHandler,
		Ingest:     ingestHandler,
		Navigation: navigationHandler,
	})

	// ── 7. File Watcher ───────────────────────────────────────────────────
	if env.settings.FileWatcher.Enabled() {
		fileWatcher := watcher.New(env.settings.FileWatcher, ingestService, log)
		go func() {
			if err := fileWatcher.Run(serverCtx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("watcher stopped", slog.Any("error", err))
			}
		}()
	}

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	// Stop the watcher and rate-limit janitor, then drain in-flight requests.
	serverCancel()
	log.Info("shutting down server", slog.Duration("timeout", constants.ShutdownTimeout))

	if err := server.Shutdown(constants.ShutdownTimeout); err != nil {
		return err
	}

	log.Info("server stopped cleanly")
	return nil
}
