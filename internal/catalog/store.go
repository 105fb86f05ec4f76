// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package catalog

import (
	"context"
)

// Record is one catalog row as the API serves it: every main-table column
// verbatim, the joined "<key>_name" projections, and "metadata" as a nested
// map (never nil, empty on parse failure).
type Record map[string]any

// SearchQuery is a fully compiled search: the WHERE clause and parameters
// from the query compiler plus the resolved sort and window.
type SearchQuery struct {
	// Where is the compiled WHERE clause without the keyword; empty means
	// match everything (and skips the join graph for the count).
	Where  string
	Params []any

	// SortExpr is the resolved ORDER BY column expression.
	SortExpr string
	// SortOrder is "ASC" or "DESC", already normalized.
	SortOrder string

	Limit  int
	Offset int
}

// Repository is the storage contract of the catalog domain.
type Repository interface {
	// Search runs the compiled query and returns the un-windowed total
	// together with one page of records.
	Search(ctx context.Context, query SearchQuery) (int64, []Record, error)

	// GetByID fetches one record by primary key.
	GetByID(ctx context.Context, id int64) (Record, error)

	// GetByIDs fetches records by primary key, flattened for the frontend
	// detail view: metadata keys lifted to the top level with row columns
	// taking precedence on collision.
	GetByIDs(ctx context.Context, ids []int64) ([]Record, error)

	// Update renames a record and merges metadata with lock awareness,
	// returning the updated record.
	Update(ctx context.Context, id int64, name *string, metadata map[string]any) (Record, error)

	// SetFieldLock installs or removes the lock sentinel for one metadata
	// field.
	SetFieldLock(ctx context.Context, id int64, field string, locked bool) error

	// Delete removes records by primary key. Records still referenced by
	// other rows refuse with a conflict error.
	Delete(ctx context.Context, ids []int64) (int64, error)
}
