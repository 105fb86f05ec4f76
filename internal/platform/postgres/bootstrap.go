// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hep-fcc/datacat/internal/platform/constants"
)

//go:embed ddl.sql
var schemaDDL string

const (
	bootstrapAttempts = 3
	bootstrapBackoff  = 2 * time.Second
)

// Bootstrap ensures the catalog's database objects exist before traffic is
// served: the pg_trgm extension, the main and navigation tables, their
// indexes, and the jsonb_values_to_text helper function.
//
// # Concurrency
//
// Several replicas may boot at once. The whole check-and-apply runs inside a
// single transaction holding a fixed advisory lock, so exactly one replica
// applies the DDL and the rest observe the sentinel and skip.
//
// Transient failures (database still starting, brief network partitions) are
// retried a few times before giving up.
func Bootstrap(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	var lastErr error

	for attempt := 1; attempt <= bootstrapAttempts; attempt++ {
		lastErr = applySchema(ctx, pool, logger)
		if lastErr == nil {
			return nil
		}

		logger.Warn("schema_bootstrap_retry",
			slog.Int("attempt", attempt),
			slog.Any("error", lastErr),
		)

		select {
		case <-time.After(bootstrapBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("postgres: schema bootstrap failed after %d attempts: %w", bootstrapAttempts, lastErr)
}

func applySchema(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: failed to begin bootstrap transaction: %w", err)
	}
	// Rollback is a no-op once the transaction has committed.
	defer func() { _ = tx.Rollback(ctx) }()

	// The advisory lock is released automatically when the transaction ends,
	// on commit and on every error path alike.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", constants.SchemaAdvisoryLockKey); err != nil {
		return fmt.Errorf("postgres: failed to take bootstrap advisory lock: %w", err)
	}

	// jsonb_values_to_text doubles as the sentinel for whether our DDL has
	// already been applied.
	var installed bool
	const sentinelQuery = "SELECT to_regprocedure('jsonb_values_to_text(jsonb)') IS NOT NULL"
	if err := tx.QueryRow(ctx, sentinelQuery).Scan(&installed); err != nil {
		return fmt.Errorf("postgres: failed to probe schema sentinel: %w", err)
	}

	if installed {
		logger.Debug("schema_bootstrap_skipped")
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("postgres: failed to apply schema DDL: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: failed to commit schema DDL: %w", err)
	}

	logger.Info("schema_bootstrap_applied")
	return nil
}
