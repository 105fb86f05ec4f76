// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hep-fcc/datacat/internal/schema"
)

func testAnalysis() *schema.Analysis {
	nav := func(table, pk string, extra ...schema.Column) schema.NavigationTable {
		columns := []schema.Column{
			{Name: pk, DataType: "bigint", Primary: true},
			{Name: "name", DataType: "text"},
		}
		columns = append(columns, extra...)
		return schema.NavigationTable{TableName: table, PrimaryKey: pk, NameColumn: "name", Columns: columns}
	}

	return &schema.Analysis{
		MainTable:      "datasets",
		MainPrimaryKey: "dataset_id",
		MainColumns: []schema.Column{
			{Name: "dataset_id", DataType: "bigint", Primary: true, Ordinal: 1},
			{Name: "name", DataType: "text", Ordinal: 2},
			{Name: "accelerator_id", DataType: "bigint", Ordinal: 3},
			{Name: "detector_id", DataType: "bigint", Ordinal: 4},
			{Name: "metadata", DataType: "jsonb", Ordinal: 5},
			{Name: "last_edited_at", DataType: "timestamp without time zone", Ordinal: 6},
		},
		Navigation: map[string]schema.NavigationTable{
			"accelerator": nav("accelerators", "accelerator_id"),
			"detector": nav("detectors", "detector_id",
				schema.Column{Name: "accelerator_id", DataType: "bigint", Nullable: true}),
		},
		NavigationOrder: []string{"accelerator", "detector"},
	}
}

/*
TestBuildDropdownQuery pins the generated SQL: the INNER JOIN restriction,
bound filters on either side, and the deterministic ordering.
*/
func TestBuildDropdownQuery(t *testing.T) {
	analysis := testAnalysis()

	t.Run("no_filters", func(t *testing.T) {
		sql, params, err := BuildDropdownQuery(analysis, "detector", nil)
		require.NoError(t, err)
		assert.Equal(t,
			"SELECT DISTINCT t.detector_id AS id, t.name AS name"+
				" FROM detectors t INNER JOIN datasets d ON d.detector_id = t.detector_id"+
				" ORDER BY t.name",
			sql)
		assert.Empty(t, params)
	})

	t.Run("hierarchy_shortcut_filters_nav_table", func(t *testing.T) {
		// Detectors carry accelerator_id themselves, so the filter applies
		// on t rather than through the datasets rows.
		sql, params, err := BuildDropdownQuery(analysis, "detector", []Filter{
			{Column: "accelerator_id", OnNav: true, Value: int64(3)},
		})
		require.NoError(t, err)
		assert.Contains(t, sql, " WHERE t.accelerator_id = $1 ")
		assert.Equal(t, []any{int64(3)}, params)
	})

	t.Run("main_table_filter", func(t *testing.T) {
		sql, params, err := BuildDropdownQuery(analysis, "accelerator", []Filter{
			{Column: "detector_id", Value: int64(7)},
		})
		require.NoError(t, err)
		assert.Contains(t, sql, " WHERE d.detector_id = $1 ")
		assert.Equal(t, []any{int64(7)}, params)
	})

	t.Run("unknown_entity", func(t *testing.T) {
		_, _, err := BuildDropdownQuery(analysis, "ghost", nil)
		require.Error(t, err)
	})

	t.Run("unsafe_filter_column", func(t *testing.T) {
		_, _, err := BuildDropdownQuery(analysis, "detector", []Filter{
			{Column: "1; DROP TABLE datasets", Value: 1},
		})
		require.Error(t, err)
	})
}

/*
TestBuildSearchWhere covers the generic-search clause assembly: ANDed name
filters in navigation order, then the ORed text probe across the textual
main columns sharing one parameter.
*/
func TestBuildSearchWhere(t *testing.T) {
	plan, err := schema.NewPlan(testAnalysis())
	require.NoError(t, err)

	t.Run("filters_and_text", func(t *testing.T) {
		where, params := buildSearchWhere(plan,
			map[string]string{"detector": "IDEA", "accelerator": "FCC-ee"},
			"higgs")

		assert.Equal(t,
			"acc.name ILIKE $1 AND det.name ILIKE $2 AND (d.name ILIKE '%' || $3 || '%')",
			where)
		assert.Equal(t, []any{"FCC-ee", "IDEA", "higgs"}, params)
	})

	t.Run("text_only", func(t *testing.T) {
		where, params := buildSearchWhere(plan, nil, "zh")
		assert.Equal(t, "(d.name ILIKE '%' || $1 || '%')", where)
		assert.Equal(t, []any{"zh"}, params)
	})

	t.Run("nothing", func(t *testing.T) {
		where, params := buildSearchWhere(plan, nil, "   ")
		assert.Empty(t, where)
		assert.Empty(t, params)
	})
}

func TestMenuLabel(t *testing.T) {
	assert.Equal(t, "Detector", MenuLabel("detector"))
	assert.Equal(t, "Beam Energy", MenuLabel("beam_energy"))
}
