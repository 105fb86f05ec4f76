// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hep-fcc/datacat/internal/catalog"
	"github.com/hep-fcc/datacat/internal/platform/apperr"
	"github.com/hep-fcc/datacat/internal/platform/constants"
	"github.com/hep-fcc/datacat/internal/platform/dberr"
	"github.com/hep-fcc/datacat/internal/schema"
)

// conflictRenameLimit bounds the "_conflict_<n>" rename retries before a
// record is given up as a Conflict.
const conflictRenameLimit = 10

// navResolveOrder fixes the resolution order so the detector can reference
// the accelerator resolved in the same record.
var navResolveOrder = []string{EntityAccelerator, EntityStage, EntityCampaign, EntityDetector}

type PostgresRepository struct {
	db        *pgxpool.Pool
	inspector *schema.Inspector
	logger    *slog.Logger
}

func NewPostgresRepository(db *pgxpool.Pool, inspector *schema.Inspector, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, inspector: inspector, logger: logger}
}

// ImportBatch upserts all records inside one transaction. Every record runs
// in its own savepoint so one bad entry cannot poison the rest; when more
// than half the batch fails the transaction rolls back wholesale.
func (repository *PostgresRepository) ImportBatch(ctx context.Context, records []Record) (BatchResult, error) {
	analysis, err := repository.inspector.Analysis(ctx)
	if err != nil {
		return BatchResult{}, apperr.Internal(err)
	}

	tx, err := repository.db.Begin(ctx)
	if err != nil {
		return BatchResult{}, dberr.Wrap(err, "import batch")
	}
	defer tx.Rollback(ctx)

	cache := make(map[string]map[string]int64, len(analysis.Navigation))
	result := BatchResult{Total: len(records)}
	var firstErr error

	for _, record := range records {
		if err := repository.importRecord(ctx, tx, analysis, cache, record); err != nil {
			result.Failed++
			if firstErr == nil {
				firstErr = err
			}
			repository.logger.Warn("record_import_failed",
				slog.String("name", record.Name),
				slog.String("error", err.Error()))
			continue
		}
		result.Imported++
	}

	if float64(result.Failed) > float64(result.Total)*constants.ImportFailureRollbackRatio {
		return result, apperr.BatchImport(result.Failed, result.Total, firstErr)
	}

	if err := tx.Commit(ctx); err != nil {
		return result, dberr.Wrap(err, "import batch")
	}
	return result, nil
}

// importRecord resolves the record's navigation ids and upserts it, renaming
// on unresolved unique collisions.
func (repository *PostgresRepository) importRecord(
	ctx context.Context,
	tx pgx.Tx,
	analysis *schema.Analysis,
	cache map[string]map[string]int64,
	record Record,
) error {
	nested, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	defer nested.Rollback(ctx)

	ids, err := repository.resolveNavigation(ctx, nested, analysis, cache, record.Navigation)
	if err != nil {
		return err
	}

	name := record.Name
	for attempt := 0; ; attempt++ {
		err := inSavepoint(ctx, nested, func(sp pgx.Tx) error {
			return upsertRecord(ctx, sp, analysis, name, ids, record.Metadata)
		})
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return err
		}
		if attempt >= conflictRenameLimit {
			return apperr.Conflict(fmt.Sprintf("Cannot import %q: name collisions persisted after %d renames", record.Name, conflictRenameLimit))
		}

		name = fmt.Sprintf("%s_conflict_%d", record.Name, attempt+1)
		repository.logger.Warn("record_name_conflict_renamed",
			slog.String("original", record.Name),
			slog.String("renamed", name))
	}

	return nested.Commit(ctx)
}

// resolveNavigation turns path-derived names into foreign-key ids, creating
// missing navigation rows on the way. The cache is per batch: a thousand
// records from the same campaign resolve it once.
func (repository *PostgresRepository) resolveNavigation(
	ctx context.Context,
	tx pgx.Tx,
	analysis *schema.Analysis,
	cache map[string]map[string]int64,
	names map[string]string,
) (map[string]int64, error) {
	ids := make(map[string]int64, len(names))

	for _, key := range navResolveOrder {
		name, ok := names[key]
		if !ok || name == "" {
			continue
		}
		nav, ok := analysis.Navigation[key]
		if !ok {
			continue
		}

		if byName, ok := cache[key]; ok {
			if id, hit := byName[strings.ToLower(name)]; hit {
				ids[key] = id
				continue
			}
		} else {
			cache[key] = make(map[string]int64)
		}

		id, err := repository.getOrCreate(ctx, tx, key, nav, name, ids)
		if err != nil {
			return nil, fmt.Errorf("resolve %s %q: %w", key, name, err)
		}

		ids[key] = id
		cache[key][strings.ToLower(name)] = id
	}

	return ids, nil
}

// getOrCreate finds a navigation row by case-insensitive exact name, or
// inserts it. A unique-violation race with another process resolves by
// re-selecting the winner's row.
func (repository *PostgresRepository) getOrCreate(
	ctx context.Context,
	tx pgx.Tx,
	key string,
	nav schema.NavigationTable,
	name string,
	resolved map[string]int64,
) (int64, error) {
	selectQuery := fmt.Sprintf("SELECT %s FROM %s WHERE %s ILIKE $1", nav.PrimaryKey, nav.TableName, nav.NameColumn)

	var id int64
	err := tx.QueryRow(ctx, selectQuery, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	columns := []string{nav.NameColumn}
	values := []any{name}

	// New accelerators get a stock description; detectors inherit the
	// accelerator resolved from the same path.
	if key == EntityAccelerator && nav.HasColumn("description") {
		columns = append(columns, "description")
		values = append(values, fmt.Sprintf("Accelerator for %s collisions", strings.ToUpper(name)))
	}
	if acceleratorID, ok := resolved[EntityAccelerator]; ok && nav.HasColumn(EntityAccelerator+"_id") {
		columns = append(columns, EntityAccelerator+"_id")
		values = append(values, acceleratorID)
	}

	var insert strings.Builder
	fmt.Fprintf(&insert, "INSERT INTO %s (%s) VALUES (", nav.TableName, strings.Join(columns, ", "))
	for i := range values {
		if i > 0 {
			insert.WriteString(", ")
		}
		fmt.Fprintf(&insert, "$%d", i+1)
	}
	fmt.Fprintf(&insert, ") RETURNING %s", nav.PrimaryKey)

	err = inSavepoint(ctx, tx, func(sp pgx.Tx) error {
		return sp.QueryRow(ctx, insert.String(), values...).Scan(&id)
	})
	if err == nil {
		return id, nil
	}
	if !isUniqueViolation(err) {
		return 0, err
	}

	// Lost the race: another writer inserted the same name concurrently.
	if err := tx.QueryRow(ctx, selectQuery, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// upsertRecord merges metadata lock-aware against the existing row and
// writes the record in one INSERT … ON CONFLICT statement. Re-importing an
// unchanged record still touches last_edited_at.
func upsertRecord(
	ctx context.Context,
	tx pgx.Tx,
	analysis *schema.Analysis,
	name string,
	ids map[string]int64,
	metadata map[string]any,
) error {
	existingQuery := fmt.Sprintf("SELECT COALESCE(metadata, '{}'::jsonb) FROM %s WHERE name = $1", analysis.MainTable)

	existing := map[string]any{}
	var existingRaw []byte
	err := tx.QueryRow(ctx, existingQuery, name).Scan(&existingRaw)
	switch {
	case err == nil:
		if unmarshalErr := json.Unmarshal(existingRaw, &existing); unmarshalErr != nil || existing == nil {
			existing = map[string]any{}
		}
	case errors.Is(err, pgx.ErrNoRows):
		// First import of this name.
	default:
		return err
	}

	merged := catalog.MergeMetadata(existing, metadata)

	columns := []string{"name", "metadata"}
	values := []any{name, merged}
	for _, key := range analysis.NavigationOrder {
		columns = append(columns, key+"_id")
		if id, ok := ids[key]; ok {
			values = append(values, id)
		} else {
			values = append(values, nil)
		}
	}

	var query strings.Builder
	fmt.Fprintf(&query, "INSERT INTO %s (%s) VALUES (", analysis.MainTable, strings.Join(columns, ", "))
	for i := range values {
		if i > 0 {
			query.WriteString(", ")
		}
		fmt.Fprintf(&query, "$%d", i+1)
	}
	query.WriteString(") ON CONFLICT (name) DO UPDATE SET metadata = EXCLUDED.metadata")
	for _, key := range analysis.NavigationOrder {
		fmt.Fprintf(&query, ", %s_id = EXCLUDED.%s_id", key, key)
	}
	query.WriteString(", last_edited_at = timezone('utc', now())")

	_, err = tx.Exec(ctx, query.String(), values...)
	return err
}

// inSavepoint runs fn inside a nested transaction (a savepoint), so a
// failed statement cannot poison the surrounding transaction.
func inSavepoint(ctx context.Context, tx pgx.Tx, fn func(pgx.Tx) error) error {
	nested, err := tx.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(nested); err != nil {
		_ = nested.Rollback(ctx)
		return err
	}
	return nested.Commit(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
