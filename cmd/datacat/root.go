// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/hep-fcc/datacat/internal/platform/config"
	"github.com/hep-fcc/datacat/internal/platform/constants"
	"github.com/hep-fcc/datacat/internal/platform/logging"
	pgstore "github.com/hep-fcc/datacat/internal/platform/postgres"
	"github.com/hep-fcc/datacat/internal/schema"
)

// startupTimeout bounds dependency dial-up so misconfiguration fails fast
// instead of hanging.
const startupTimeout = 30 * time.Second

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "datacat",
		Short:         "Schema-adaptive catalog for FCC physics datasets",
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCommand())
	root.AddCommand(newImportCommand())

	return root
}

// # Shared Wiring

// environment is the dependency set both subcommands start from: parsed
// configuration, deployment settings, logger, database pool, and the
// schema inspector over the bootstrapped catalog.
type environment struct {
	cfg       *config.Config
	settings  *config.Settings
	log       *slog.Logger
	pool      *pgxpool.Pool
	inspector *schema.Inspector
}

// setup loads configuration and connects to PostgreSQL, bootstrapping the
// catalog schema on the way. Callers own pool shutdown via env.close.
func setup(ctx context.Context) (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return nil, err
	}

	log := logging.New(cfg.LogFile, cfg.Debug)
	slog.SetDefault(log)

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("main_table", settings.Application.MainTable),
	)

	dsn := cfg.DatabaseURL
	if dsn == "" {
		dsn = settings.Database.DSN()
	}

	pool, err := pgstore.NewPool(ctx, dsn, log)
	if err != nil {
		return nil, err
	}

	if err := pgstore.Bootstrap(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}

	inspector := schema.NewInspector(pool, settings.Application.MainTable, settings.Navigation.Order, log)

	return &environment{
		cfg:       cfg,
		settings:  settings,
		log:       log,
		pool:      pool,
		inspector: inspector,
	}, nil
}

func (env *environment) close() {
	env.log.Info("closing postgres pool")
	env.pool.Close()
}
