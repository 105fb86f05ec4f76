// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// MainAlias is the alias reserved for the main table in every generated
// query. The alias generator must never assign it to a navigation table.
const MainAlias = "d"

// MetadataBlobExpr renders the flattened-metadata haystack for an aliased
// main table. The underlying SQL function is installed by the bootstrap DDL.
func MetadataBlobExpr(alias string) string {
	return fmt.Sprintf("jsonb_values_to_text(%s.metadata)", alias)
}

// SearchField is one entry of the global-search field list. The metadata
// blob is matched with word-level similarity; everything else whole-string.
type SearchField struct {
	SQL            string
	IsMetadataBlob bool
}

// Plan is the frozen JOIN plan derived once from an [Analysis]: the alias
// table, the FROM/JOIN fragment, the SELECT projection, and the
// global-search field list. It is immutable and shared by reference across
// concurrent requests.
type Plan struct {
	Analysis *Analysis

	// Aliases maps every navigation entity key to its query alias.
	// The main table always uses [MainAlias].
	Aliases map[string]string

	// FromAndJoins is "FROM <main> d LEFT JOIN ..." in navigation order.
	FromAndJoins string

	// SelectFields is "d.*, <alias>.<name_col> AS <key>_name, ...".
	SelectFields string

	// GlobalSearchFields is the ordered haystack for bare-literal searches:
	// the main name column, the flattened metadata blob, then every joined
	// name column.
	GlobalSearchFields []SearchField
}

// NewPlan builds the JOIN plan for the given analysis. It fails when any
// discovered identifier would be unsafe to template into SQL; values are
// always bound, but table, column, and alias names cannot be.
func NewPlan(analysis *Analysis) (*Plan, error) {
	if err := validateIdentifiers(analysis); err != nil {
		return nil, err
	}

	plan := &Plan{
		Analysis: analysis,
		Aliases:  assignAliases(analysis.NavigationOrder),
	}

	var from strings.Builder
	fmt.Fprintf(&from, "FROM %s %s", analysis.MainTable, MainAlias)

	selectFields := []string{MainAlias + ".*"}
	plan.GlobalSearchFields = []SearchField{
		{SQL: MainAlias + ".name"},
		{SQL: MetadataBlobExpr(MainAlias), IsMetadataBlob: true},
	}

	for _, key := range analysis.NavigationOrder {
		nav := analysis.Navigation[key]
		alias := plan.Aliases[key]

		fmt.Fprintf(&from, " LEFT JOIN %s %s ON %s.%s_id = %s.%s",
			nav.TableName, alias, MainAlias, key, alias, nav.PrimaryKey)

		selectFields = append(selectFields,
			fmt.Sprintf("%s.%s AS %s_name", alias, nav.NameColumn, key))
		plan.GlobalSearchFields = append(plan.GlobalSearchFields,
			SearchField{SQL: fmt.Sprintf("%s.%s", alias, nav.NameColumn)})
	}

	plan.FromAndJoins = from.String()
	plan.SelectFields = strings.Join(selectFields, ", ")

	return plan, nil
}

// NameColumnFor renders the aliased name column for a navigation entity key,
// e.g. "det.name" for "detector".
func (p *Plan) NameColumnFor(key string) (string, bool) {
	alias, ok := p.Aliases[key]
	if !ok {
		return "", false
	}
	return alias + "." + p.Analysis.Navigation[key].NameColumn, true
}

// assignAliases derives a deterministic, collision-free alias per entity key:
// the three-character prefix, then the four-character prefix, then the
// three-character prefix with an incrementing counter. [MainAlias] is
// reserved throughout, so a "det"-like key whose prefix lands on "d" skips it.
func assignAliases(order []string) map[string]string {
	aliases := make(map[string]string, len(order))
	taken := map[string]bool{MainAlias: true}

	for _, key := range order {
		alias := prefix(key, 3)
		if taken[alias] {
			alias = prefix(key, 4)
		}
		for counter := 1; taken[alias]; counter++ {
			alias = prefix(key, 3) + strconv.Itoa(counter)
		}
		aliases[key] = alias
		taken[alias] = true
	}

	return aliases
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// validateIdentifiers whitelists every discovered name before it can be
// templated into SQL.
func validateIdentifiers(analysis *Analysis) error {
	if !ValidIdent(analysis.MainTable) {
		return fmt.Errorf("schema: unsafe main table name %q", analysis.MainTable)
	}
	if !ValidIdent(analysis.MainPrimaryKey) {
		return fmt.Errorf("schema: unsafe primary key %q on table %q", analysis.MainPrimaryKey, analysis.MainTable)
	}
	for _, column := range analysis.MainColumns {
		if !ValidIdent(column.Name) {
			return fmt.Errorf("schema: unsafe column name %q on table %q", column.Name, analysis.MainTable)
		}
	}
	for key, nav := range analysis.Navigation {
		if !ValidIdent(key) || !ValidIdent(nav.TableName) || !ValidIdent(nav.PrimaryKey) || !ValidIdent(nav.NameColumn) {
			return fmt.Errorf("schema: unsafe identifiers for navigation entity %q", key)
		}
		for _, column := range nav.Columns {
			if !ValidIdent(column.Name) {
				return fmt.Errorf("schema: unsafe column name %q on table %q", column.Name, nav.TableName)
			}
		}
	}
	return nil
}
