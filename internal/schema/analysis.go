// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

/*
Package schema discovers the live database layout and freezes it into the
analysis record every SQL-emitting component consults.

# Architecture

The catalog is schema-adaptive: which table is "main", which lookup tables
hang off it, and which metadata keys exist are all read from
information_schema at startup rather than hard-coded. The resulting
[Analysis] is immutable; handlers receive it by reference and never mutate
it, so it is safe to share across concurrent requests.
*/
package schema

import (
	"regexp"
	"strings"
)

// identPattern is the whitelist for anything interpolated into SQL as an
// identifier. Values never go through this path; they are always bound.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdent reports whether name is safe to template into SQL as a table,
// column, or alias identifier.
func ValidIdent(name string) bool {
	return identPattern.MatchString(name)
}

// Column describes one column of a discovered table.
type Column struct {
	Name     string `json:"name"`
	DataType string `json:"type"`
	Nullable bool   `json:"nullable"`
	Primary  bool   `json:"primary_key"`
	Ordinal  int    `json:"-"`
}

// NavigationTable describes one lookup table referenced by the main table.
type NavigationTable struct {
	TableName  string   `json:"table_name"`
	PrimaryKey string   `json:"primary_key"`
	NameColumn string   `json:"name_column"`
	Columns    []Column `json:"columns"`
}

// ColumnNames returns the column names of the navigation table in order.
func (n NavigationTable) ColumnNames() []string {
	names := make([]string, len(n.Columns))
	for i, c := range n.Columns {
		names[i] = c.Name
	}
	return names
}

// HasColumn reports whether the navigation table carries the named column.
func (n NavigationTable) HasColumn(name string) bool {
	for _, c := range n.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Analysis is the frozen schema-analysis record produced once per boot.
//
// Navigation keys are foreign-key column names of the main table stripped of
// their "_id" suffix; NavigationOrder lists them by the ordinal of that
// column in the main table.
type Analysis struct {
	MainTable       string
	MainPrimaryKey  string
	MainColumns     []Column
	Navigation      map[string]NavigationTable
	NavigationOrder []string
	MetadataKeys    map[string]bool
	MetadataNested  map[string]bool
}

// NavigationKey resolves an identifier to a navigation entity key, accepting
// the bare key and its "_name"-suffixed spelling ("detector_name" filters and
// sort fields address the joined name column).
func (a *Analysis) NavigationKey(ident string) (string, bool) {
	key := strings.TrimSuffix(ident, "_name")
	if _, ok := a.Navigation[key]; ok {
		return key, true
	}
	return "", false
}

// IsMetadataKey reports whether ident names a harvested metadata key, either
// a top-level key or the parent of a one-level-nested key.
func (a *Analysis) IsMetadataKey(ident string) bool {
	if a.MetadataKeys[ident] {
		return true
	}
	prefix := ident + "."
	for nested := range a.MetadataNested {
		if strings.HasPrefix(nested, prefix) {
			return true
		}
	}
	return false
}

// MainColumn looks up a main-table column by name.
func (a *Analysis) MainColumn(name string) (Column, bool) {
	for _, c := range a.MainColumns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IsTimestampColumn reports whether the named main-table column stores a
// timestamp. Comparand coercion in the translator depends on it.
func (a *Analysis) IsTimestampColumn(name string) bool {
	c, ok := a.MainColumn(name)
	if !ok {
		return false
	}
	return strings.HasPrefix(c.DataType, "timestamp")
}

// ForeignKeyColumns returns the main table's navigation foreign-key column
// names ("<key>_id") in navigation order.
func (a *Analysis) ForeignKeyColumns() []string {
	cols := make([]string, len(a.NavigationOrder))
	for i, key := range a.NavigationOrder {
		cols[i] = key + "_id"
	}
	return cols
}
