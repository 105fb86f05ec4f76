// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package gclql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hep-fcc/datacat/internal/schema"
)

// testPlan freezes the JOIN plan of the canonical FCC layout: datasets with
// accelerator, stage, campaign, and detector navigation entities.
func testPlan(t *testing.T) *schema.Plan {
	t.Helper()

	nav := func(table, pk string) schema.NavigationTable {
		return schema.NavigationTable{
			TableName:  table,
			PrimaryKey: pk,
			NameColumn: "name",
			Columns: []schema.Column{
				{Name: pk, DataType: "bigint", Primary: true},
				{Name: "name", DataType: "text"},
			},
		}
	}

	analysis := &schema.Analysis{
		MainTable:      "datasets",
		MainPrimaryKey: "dataset_id",
		MainColumns: []schema.Column{
			{Name: "dataset_id", DataType: "bigint", Primary: true, Ordinal: 1},
			{Name: "name", DataType: "text", Ordinal: 2},
			{Name: "accelerator_id", DataType: "bigint", Nullable: true, Ordinal: 3},
			{Name: "stage_id", DataType: "bigint", Nullable: true, Ordinal: 4},
			{Name: "campaign_id", DataType: "bigint", Nullable: true, Ordinal: 5},
			{Name: "detector_id", DataType: "bigint", Nullable: true, Ordinal: 6},
			{Name: "metadata", DataType: "jsonb", Ordinal: 7},
			{Name: "created_at", DataType: "timestamp without time zone", Ordinal: 8},
			{Name: "last_edited_at", DataType: "timestamp without time zone", Nullable: true, Ordinal: 9},
		},
		Navigation: map[string]schema.NavigationTable{
			"accelerator": nav("accelerators", "accelerator_id"),
			"stage":       nav("stages", "stage_id"),
			"campaign":    nav("campaigns", "campaign_id"),
			"detector":    nav("detectors", "detector_id"),
		},
		NavigationOrder: []string{"accelerator", "stage", "campaign", "detector"},
		MetadataKeys:    map[string]bool{"energy": true, "status": true, "n-events": true},
		MetadataNested:  map[string]bool{"files.good": true},
	}

	plan, err := schema.NewPlan(analysis)
	require.NoError(t, err)
	return plan
}

// compile parses and translates in one step for test brevity.
func compile(t *testing.T, plan *schema.Plan, query string) (string, []any) {
	t.Helper()

	node, err := Parse(query)
	require.NoError(t, err)

	where, params, err := NewTranslator(plan).Translate(node)
	require.NoError(t, err)
	return where, params
}

/*
TestTranslate_FieldResolution walks the field resolution ladder: navigation
names (bare and _name-suffixed), explicit metadata paths, auto-detected
metadata keys, nested keys, and main-column fall-through.
*/
func TestTranslate_FieldResolution(t *testing.T) {
	plan := testPlan(t)

	tests := []struct {
		name       string
		query      string
		wantSQL    string
		wantParams []any
	}{
		{
			name:       "navigation_entity",
			query:      "detector:IDEA",
			wantSQL:    "det.name ILIKE '%' || $1 || '%'",
			wantParams: []any{"IDEA"},
		},
		{
			name:       "navigation_entity_name_suffix",
			query:      "detector_name:IDEA",
			wantSQL:    "det.name ILIKE '%' || $1 || '%'",
			wantParams: []any{"IDEA"},
		},
		{
			name:       "explicit_metadata_path",
			query:      "metadata.status:done",
			wantSQL:    "d.metadata ->> 'status' ILIKE '%' || $1 || '%'",
			wantParams: []any{"done"},
		},
		{
			name:       "auto_detected_metadata_key",
			query:      "status:done",
			wantSQL:    "d.metadata ->> 'status' ILIKE '%' || $1 || '%'",
			wantParams: []any{"done"},
		},
		{
			name:       "nested_metadata_path",
			query:      "files.good = yes",
			wantSQL:    "d.metadata -> 'files' ->> 'good' = $1",
			wantParams: []any{"yes"},
		},
		{
			name:       "main_column_fall_through",
			query:      "name:higgs",
			wantSQL:    "d.name ILIKE '%' || $1 || '%'",
			wantParams: []any{"higgs"},
		},
		{
			name:       "unseen_dotted_path_is_metadata",
			query:      "provenance.site:cern",
			wantSQL:    "d.metadata -> 'provenance' ->> 'site' ILIKE '%' || $1 || '%'",
			wantParams: []any{"cern"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, params := compile(t, plan, tt.query)
			assert.Equal(t, tt.wantSQL, where)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

/*
TestTranslate_Operators covers the operator mapping: numeric casts on
metadata, regex variants, existence probes, and the timestamp shorthand.
*/
func TestTranslate_Operators(t *testing.T) {
	plan := testPlan(t)

	tests := []struct {
		name       string
		query      string
		wantSQL    string
		wantParams []any
	}{
		{
			name:       "numeric_metadata_comparison_gets_cast",
			query:      "metadata.energy > 100",
			wantSQL:    "(d.metadata ->> 'energy')::numeric > $1",
			wantParams: []any{int64(100)},
		},
		{
			name:       "decimal_binds_as_float",
			query:      "energy >= 2.5",
			wantSQL:    "(d.metadata ->> 'energy')::numeric >= $1",
			wantParams: []any{2.5},
		},
		{
			name:       "numeric_on_plain_column_skips_cast",
			query:      "dataset_id = 42",
			wantSQL:    "d.dataset_id = $1",
			wantParams: []any{int64(42)},
		},
		{
			name:       "contains_on_numeric_text_skips_cast",
			query:      "energy:100",
			wantSQL:    "d.metadata ->> 'energy' ILIKE '%' || $1 || '%'",
			wantParams: []any{"100"},
		},
		{
			name:       "regex_case_insensitive",
			query:      `name =~ "^idea"`,
			wantSQL:    "d.name ~* $1",
			wantParams: []any{"^idea"},
		},
		{
			name:       "negated_regex",
			query:      `name !~ "test$"`,
			wantSQL:    "d.name !~* $1",
			wantParams: []any{"test$"},
		},
		{
			name:       "metadata_key_existence",
			query:      "metadata.status:*",
			wantSQL:    "d.metadata ? $1",
			wantParams: []any{"status"},
		},
		{
			name:       "nested_existence_uses_jsonpath",
			query:      "files.good:*",
			wantSQL:    "jsonb_path_exists(d.metadata, $1::jsonpath)",
			wantParams: []any{`$."files"."good"`},
		},
		{
			name:       "column_existence",
			query:      "last_edited_at:*",
			wantSQL:    "d.last_edited_at IS NOT NULL",
			wantParams: nil,
		},
		{
			name:       "empty_contains_on_timestamp_is_not_null",
			query:      "last_edited_at:",
			wantSQL:    "d.last_edited_at IS NOT NULL",
			wantParams: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			where, params := compile(t, plan, tt.query)
			assert.Equal(t, tt.wantSQL, where)
			assert.Equal(t, tt.wantParams, params)
		})
	}
}

/*
TestTranslate_Timestamps verifies comparand coercion across the accepted
layouts and the NULL guard on ordering comparisons.
*/
func TestTranslate_Timestamps(t *testing.T) {
	plan := testPlan(t)

	t.Run("ordering_wraps_null_guard", func(t *testing.T) {
		where, params := compile(t, plan, `created_at > "2026-01-15"`)
		assert.Equal(t, "(d.created_at IS NOT NULL AND d.created_at > $1)", where)
		require.Len(t, params, 1)
		assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), params[0])
	})

	t.Run("equality_binds_without_guard", func(t *testing.T) {
		where, params := compile(t, plan, `created_at = "2026-01-15 09:30:00"`)
		assert.Equal(t, "d.created_at = $1", where)
		require.Len(t, params, 1)
		assert.Equal(t, time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC), params[0])
	})

	t.Run("t_separated_minutes", func(t *testing.T) {
		_, params := compile(t, plan, `created_at <= "2026-01-15T09:30"`)
		require.Len(t, params, 1)
		assert.Equal(t, time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC), params[0])
	})

	t.Run("unparseable_value_binds_as_text", func(t *testing.T) {
		where, params := compile(t, plan, `created_at = "yesterday"`)
		assert.Equal(t, "d.created_at = $1", where)
		assert.Equal(t, []any{"yesterday"}, params)
	})
}

/*
TestTranslate_Boolean checks composition and parameter ordering across
boolean operators.
*/
func TestTranslate_Boolean(t *testing.T) {
	plan := testPlan(t)

	t.Run("and_with_ordered_params", func(t *testing.T) {
		where, params := compile(t, plan, "detector:IDEA AND metadata.energy > 100")
		assert.Equal(t,
			"(det.name ILIKE '%' || $1 || '%' AND (d.metadata ->> 'energy')::numeric > $2)",
			where)
		assert.Equal(t, []any{"IDEA", int64(100)}, params)
	})

	t.Run("not_parenthesizes", func(t *testing.T) {
		where, params := compile(t, plan, "NOT detector:IDEA")
		assert.Equal(t, "NOT (det.name ILIKE '%' || $1 || '%')", where)
		assert.Equal(t, []any{"IDEA"}, params)
	})

	t.Run("nested_grouping", func(t *testing.T) {
		where, params := compile(t, plan, "accelerator:FCC-ee AND (stage:sim OR stage:rec)")
		assert.Equal(t,
			"(acc.name ILIKE '%' || $1 || '%' AND (sta.name ILIKE '%' || $2 || '%' OR sta.name ILIKE '%' || $3 || '%'))",
			where)
		assert.Equal(t, []any{"FCC-ee", "sim", "rec"}, params)
	})
}

/*
TestTranslate_GlobalSearch pins the exact haystack expansion for quoted and
bare literals, including the single shared parameter.
*/
func TestTranslate_GlobalSearch(t *testing.T) {
	plan := testPlan(t)

	t.Run("quoted_uses_substring_matching", func(t *testing.T) {
		where, params := compile(t, plan, `"winter"`)
		assert.Equal(t,
			"(d.name ILIKE '%' || $1 || '%'"+
				" OR jsonb_values_to_text(d.metadata) ILIKE '%' || $1 || '%'"+
				" OR acc.name ILIKE '%' || $1 || '%'"+
				" OR sta.name ILIKE '%' || $1 || '%'"+
				" OR cam.name ILIKE '%' || $1 || '%'"+
				" OR det.name ILIKE '%' || $1 || '%')",
			where)
		assert.Equal(t, []any{"winter"}, params)
	})

	t.Run("bare_uses_similarity", func(t *testing.T) {
		where, params := compile(t, plan, "higgs")
		assert.Equal(t,
			"(similarity($1, d.name) > 0.6"+
				" OR word_similarity($1, jsonb_values_to_text(d.metadata)) > 0.4"+
				" OR similarity($1, acc.name) > 0.6"+
				" OR similarity($1, sta.name) > 0.6"+
				" OR similarity($1, cam.name) > 0.6"+
				" OR similarity($1, det.name) > 0.6)",
			where)
		assert.Equal(t, []any{"higgs"}, params)
	})

	t.Run("star_matches_everything", func(t *testing.T) {
		where, params := compile(t, plan, "*")
		assert.Equal(t, "TRUE", where)
		assert.Empty(t, params)
	})
}

/*
TestTranslate_UnsafeField ensures an identifier outside the SQL whitelist
errors instead of being templated.
*/
func TestTranslate_UnsafeField(t *testing.T) {
	plan := testPlan(t)

	node, err := Parse("my-column:x")
	require.NoError(t, err)

	_, _, err = NewTranslator(plan).Translate(node)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid column reference")
}

/*
TestSortExpr resolves sort identifiers through the same rules as filters.
*/
func TestSortExpr(t *testing.T) {
	plan := testPlan(t)

	tests := []struct {
		field string
		want  string
	}{
		{"name", "d.name"},
		{"detector_name", "det.name"},
		{"metadata.energy", "d.metadata ->> 'energy'"},
		{"created_at", "d.created_at"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, err := SortExpr(plan, tt.field)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := SortExpr(plan, "metadata.")
	require.Error(t, err)

	_, err = SortExpr(plan, "na;me")
	require.Error(t, err)
}
