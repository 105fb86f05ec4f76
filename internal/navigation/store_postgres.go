// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
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

// Dropdown lists the distinct options of one navigation entity under the
// given raw filters (as decoded from the frontend's filters JSON).
//
// Name filters that resolve to no row short-circuit to an empty list: the
// user picked a combination with no data, which is an answer, not an error.
func (repository *PostgresRepository) Dropdown(ctx context.Context, key string, rawFilters map[string]any) ([]Option, error) {
	analysis, err := repository.inspector.Analysis(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	nav, ok := analysis.Navigation[key]
	if !ok {
		return nil, apperr.NotFound("Navigation entity " + key)
	}

	filters, resolvable, err := repository.resolveFilters(ctx, analysis, nav, key, rawFilters)
	if err != nil {
		return nil, err
	}
	if !resolvable {
		return []Option{}, nil
	}

	query, params, err := BuildDropdownQuery(analysis, key, filters)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	rows, err := repository.db.Query(ctx, query, params...)
	if err != nil {
		return nil, dberr.Wrap(err, "list dropdown options")
	}
	defer rows.Close()

	options := make([]Option, 0)
	for rows.Next() {
		var option Option
		if err := rows.Scan(&option.ID, &option.Name); err != nil {
			return nil, dberr.Wrap(err, "list dropdown options")
		}
		options = append(options, option)
	}
	if err := rows.Err(); err != nil {
		return nil, dberr.Wrap(err, "list dropdown options")
	}

	return options, nil
}

// resolveFilters turns raw filter keys into bound column constraints:
// "<other>_id" binds directly, "<other>_name" is looked up to an id first.
// The second return is false when a name filter matched nothing. Filters on
// the requested entity itself and keys that fit neither pattern are ignored.
func (repository *PostgresRepository) resolveFilters(
	ctx context.Context,
	analysis *schema.Analysis,
	nav schema.NavigationTable,
	key string,
	rawFilters map[string]any,
) ([]Filter, bool, error) {
	filters := make([]Filter, 0, len(rawFilters))

	for rawKey, rawValue := range rawFilters {
		var otherKey string
		var value any

		switch {
		case strings.HasSuffix(rawKey, "_id"):
			otherKey = strings.TrimSuffix(rawKey, "_id")
			value = rawValue

		case strings.HasSuffix(rawKey, "_name"):
			otherKey = strings.TrimSuffix(rawKey, "_name")
			other, ok := analysis.Navigation[otherKey]
			if !ok || otherKey == key {
				break
			}

			name, _ := rawValue.(string)
			id, found, err := repository.lookupNameID(ctx, other, name)
			if err != nil {
				return nil, false, err
			}
			if !found {
				return nil, false, nil
			}
			value = id
		}

		if otherKey == "" || otherKey == key || value == nil {
			if otherKey != key {
				repository.logger.Warn("dropdown_filter_ignored", slog.String("filter", rawKey))
			}
			continue
		}
		if _, ok := analysis.Navigation[otherKey]; !ok {
			repository.logger.Warn("dropdown_filter_ignored", slog.String("filter", rawKey))
			continue
		}

		column := otherKey + "_id"
		filters = append(filters, Filter{
			Column: column,
			OnNav:  nav.HasColumn(column),
			Value:  value,
		})
	}

	return filters, true, nil
}

// lookupNameID resolves an entity name to its id, case-insensitive exact.
func (repository *PostgresRepository) lookupNameID(ctx context.Context, nav schema.NavigationTable, name string) (int64, bool, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s ILIKE $1", nav.PrimaryKey, nav.TableName, nav.NameColumn)

	var id int64
	err := repository.db.QueryRow(ctx, query, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, dberr.Wrap(err, "resolve filter name")
	}
	return id, true, nil
}
