// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

/*
Package navigation serves the frontend's structural endpoints: the cascading
navigation dropdowns, the generic filter-plus-text search, and the schema
contract the UI renders itself from.
*/
package navigation

import (
	"fmt"
	"strings"

	"github.com/hep-fcc/datacat/internal/schema"
)

// Option is one dropdown entry.
type Option struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Filter is one resolved dropdown constraint: a foreign-key column and the
// id it must equal. OnNav selects the hierarchy shortcut: when the
// navigation table itself carries the column (detectors carry
// accelerator_id), filtering there keeps detectors visible even before any
// dataset links them.
type Filter struct {
	Column string
	OnNav  bool
	Value  any
}

// BuildDropdownQuery renders the distinct-values query for one navigation
// entity. The INNER JOIN restricts options to values actually used by main
// rows; filters narrow further. All identifiers are whitelisted, all values
// bound.
func BuildDropdownQuery(analysis *schema.Analysis, key string, filters []Filter) (string, []any, error) {
	nav, ok := analysis.Navigation[key]
	if !ok {
		return "", nil, fmt.Errorf("navigation: unknown entity key %q", key)
	}

	var sql strings.Builder
	fmt.Fprintf(&sql, "SELECT DISTINCT t.%s AS id, t.%s AS name FROM %s t INNER JOIN %s d ON d.%s_id = t.%s",
		nav.PrimaryKey, nav.NameColumn, nav.TableName, analysis.MainTable, key, nav.PrimaryKey)

	params := make([]any, 0, len(filters))
	for i, filter := range filters {
		if !schema.ValidIdent(filter.Column) {
			return "", nil, fmt.Errorf("navigation: unsafe filter column %q", filter.Column)
		}

		if i == 0 {
			sql.WriteString(" WHERE ")
		} else {
			sql.WriteString(" AND ")
		}

		side := "d"
		if filter.OnNav {
			side = "t"
		}
		params = append(params, filter.Value)
		fmt.Fprintf(&sql, "%s.%s = $%d", side, filter.Column, len(params))
	}

	fmt.Fprintf(&sql, " ORDER BY t.%s", nav.NameColumn)

	return sql.String(), params, nil
}
