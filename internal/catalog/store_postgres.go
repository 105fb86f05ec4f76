// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hep-fcc/datacat/internal/platform/apperr"
	"github.com/hep-fcc/datacat/internal/platform/dberr"
	"github.com/hep-fcc/datacat/internal/schema"
)

type PostgresRepository struct {
	db        *pgxpool.Pool
	inspector *schema.Inspector
	logger    *slog.Logger
}

func NewPostgresRepository(db *pgxpool.Pool, inspector *schema.Inspector, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{db: db, inspector: inspector, logger: logger}
}

// Search runs the count and page queries sequentially on one acquired
// connection so both see the same pool state. An empty WHERE counts the bare
// main table without the join graph.
func (repository *PostgresRepository) Search(ctx context.Context, query SearchQuery) (int64, []Record, error) {
	plan, err := repository.inspector.Plan(ctx)
	if err != nil {
		return 0, nil, apperr.Internal(err)
	}

	conn, err := repository.db.Acquire(ctx)
	if err != nil {
		return 0, nil, apperr.SearchExecution(err)
	}
	defer conn.Release()

	countQuery := "SELECT COUNT(*) FROM " + plan.Analysis.MainTable
	var countParams []any
	if query.Where != "" {
		countQuery = "SELECT COUNT(*) " + plan.FromAndJoins + " WHERE " + query.Where
		countParams = query.Params
	}

	repository.logger.Debug("search_count_query",
		slog.String("sql", countQuery), slog.Any("params", countParams))

	var total int64
	if err := conn.QueryRow(ctx, countQuery, countParams...).Scan(&total); err != nil {
		return 0, nil, apperr.SearchExecution(err)
	}

	var sql strings.Builder
	fmt.Fprintf(&sql, "SELECT %s %s", plan.SelectFields, plan.FromAndJoins)
	if query.Where != "" {
		sql.WriteString(" WHERE ")
		sql.WriteString(query.Where)
	}

	argID := len(query.Params) + 1
	fmt.Fprintf(&sql, " ORDER BY %s %s, %s.%s %s LIMIT $%d OFFSET $%d",
		query.SortExpr, query.SortOrder,
		schema.MainAlias, plan.Analysis.MainPrimaryKey, query.SortOrder,
		argID, argID+1)

	args := make([]any, 0, len(query.Params)+2)
	args = append(args, query.Params...)
	args = append(args, query.Limit, query.Offset)

	repository.logger.Debug("search_page_query",
		slog.String("sql", sql.String()), slog.Any("params", args))

	rows, err := conn.Query(ctx, sql.String(), args...)
	if err != nil {
		return 0, nil, apperr.SearchExecution(err)
	}
	defer rows.Close()

	records, err := rowsToRecords(rows)
	if err != nil {
		return 0, nil, apperr.SearchExecution(err)
	}

	return total, records, nil
}

func (repository *PostgresRepository) GetByID(ctx context.Context, id int64) (Record, error) {
	records, err := repository.fetchByIDs(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, dberr.ErrNotFound
	}
	return records[0], nil
}

func (repository *PostgresRepository) GetByIDs(ctx context.Context, ids []int64) ([]Record, error) {
	records, err := repository.fetchByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	flattened := make([]Record, len(records))
	for i, record := range records {
		flattened[i] = Flatten(record)
	}
	return flattened, nil
}

// fetchByIDs selects full records (join projections included) by primary key.
func (repository *PostgresRepository) fetchByIDs(ctx context.Context, ids []int64) ([]Record, error) {
	plan, err := repository.inspector.Plan(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	query := fmt.Sprintf("SELECT %s %s WHERE %s.%s = ANY($1)",
		plan.SelectFields, plan.FromAndJoins, schema.MainAlias, plan.Analysis.MainPrimaryKey)

	rows, err := repository.db.Query(ctx, query, ids)
	if err != nil {
		return nil, dberr.Wrap(err, "fetch records")
	}
	defer rows.Close()

	records, err := rowsToRecords(rows)
	if err != nil {
		return nil, dberr.Wrap(err, "fetch records")
	}
	return records, nil
}

// Update renames and merges metadata in one transaction. The existing
// document is read FOR UPDATE so concurrent merges serialize, and locked
// fields survive whatever the caller sent.
func (repository *PostgresRepository) Update(ctx context.Context, id int64, name *string, metadata map[string]any) (Record, error) {
	plan, err := repository.inspector.Plan(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	mainTable := plan.Analysis.MainTable
	primaryKey := plan.Analysis.MainPrimaryKey

	tx, err := repository.db.Begin(ctx)
	if err != nil {
		return nil, dberr.Wrap(err, "update record")
	}
	defer tx.Rollback(ctx)

	var existingRaw []byte
	selectQuery := fmt.Sprintf("SELECT COALESCE(metadata, '{}'::jsonb) FROM %s WHERE %s = $1 FOR UPDATE", mainTable, primaryKey)
	if err := tx.QueryRow(ctx, selectQuery, id).Scan(&existingRaw); err != nil {
		return nil, dberr.Wrap(err, "update record")
	}

	existing := decodeMetadata(existingRaw)
	merged := existing
	if metadata != nil {
		merged = MergeMetadata(existing, metadata)
	}

	updateQuery := fmt.Sprintf(
		"UPDATE %s SET metadata = $2, name = COALESCE($3, name), last_edited_at = timezone('utc', now()) WHERE %s = $1",
		mainTable, primaryKey)
	if _, err := tx.Exec(ctx, updateQuery, id, merged, name); err != nil {
		return nil, dberr.Wrap(err, "update record")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, dberr.Wrap(err, "update record")
	}

	return repository.GetByID(ctx, id)
}

// SetFieldLock installs or removes one lock sentinel. The sentinel key is
// always bound as a parameter, never templated.
func (repository *PostgresRepository) SetFieldLock(ctx context.Context, id int64, field string, locked bool) error {
	plan, err := repository.inspector.Plan(ctx)
	if err != nil {
		return apperr.Internal(err)
	}
	mainTable := plan.Analysis.MainTable
	primaryKey := plan.Analysis.MainPrimaryKey

	var (
		query string
		arg   any
	)
	if locked {
		query = fmt.Sprintf(
			"UPDATE %s SET metadata = jsonb_set(COALESCE(metadata, '{}'::jsonb), $2, 'true'::jsonb, true), last_edited_at = timezone('utc', now()) WHERE %s = $1",
			mainTable, primaryKey)
		arg = []string{LockKey(field)}
	} else {
		query = fmt.Sprintf(
			"UPDATE %s SET metadata = COALESCE(metadata, '{}'::jsonb) - $2, last_edited_at = timezone('utc', now()) WHERE %s = $1",
			mainTable, primaryKey)
		arg = LockKey(field)
	}

	tag, err := repository.db.Exec(ctx, query, id, arg)
	if err != nil {
		return dberr.Wrap(err, "lock metadata field")
	}
	if tag.RowsAffected() == 0 {
		return dberr.ErrNotFound
	}
	return nil
}

// Delete removes records by primary key. Foreign-key refusals surface as
// Conflict through the dberr mapping.
func (repository *PostgresRepository) Delete(ctx context.Context, ids []int64) (int64, error) {
	plan, err := repository.inspector.Plan(ctx)
	if err != nil {
		return 0, apperr.Internal(err)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE %s = ANY($1)",
		plan.Analysis.MainTable, plan.Analysis.MainPrimaryKey)

	tag, err := repository.db.Exec(ctx, query, ids)
	if err != nil {
		return 0, dberr.Wrap(err, "delete "+strconv.Itoa(len(ids))+" records")
	}
	return tag.RowsAffected(), nil
}

// # Row Mapping

// rowsToRecords materializes every row as a Record keyed by the result
// column names, with metadata normalized into a nested map.
func rowsToRecords(rows pgx.Rows) ([]Record, error) {
	fields := rows.FieldDescriptions()
	records := make([]Record, 0)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}

		record := make(Record, len(fields))
		for i, field := range fields {
			record[field.Name] = values[i]
		}
		record["metadata"] = normalizeMetadata(record["metadata"])
		records = append(records, record)
	}

	return records, rows.Err()
}

// normalizeMetadata coerces whatever the driver produced for the jsonb
// column into a map. Unparseable content degrades to an empty map rather
// than failing the whole page.
func normalizeMetadata(value any) map[string]any {
	switch v := value.(type) {
	case map[string]any:
		return v
	case []byte:
		return decodeMetadata(v)
	case string:
		return decodeMetadata([]byte(v))
	}
	return map[string]any{}
}

func decodeMetadata(raw []byte) map[string]any {
	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err != nil || metadata == nil {
		return map[string]any{}
	}
	return metadata
}

// Flatten lifts metadata keys to the record's top level for the frontend
// detail view. Row columns win on collision; the nested document is dropped.
func Flatten(record Record) Record {
	metadata, _ := record["metadata"].(map[string]any)

	flat := make(Record, len(record)+len(metadata))
	for key, value := range metadata {
		flat[key] = value
	}
	for key, value := range record {
		if key == "metadata" {
			continue
		}
		flat[key] = value
	}
	return flat
}
