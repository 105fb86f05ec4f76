// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package schema

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fccAnalysis builds the analysis record of the default FCC deployment:
// datasets with accelerator, stage, campaign, and detector dimensions.
func fccAnalysis() *Analysis {
	textCol := func(name string) Column { return Column{Name: name, DataType: "text", Nullable: true} }
	idCol := func(name string) Column { return Column{Name: name, DataType: "bigint", Primary: true} }

	nav := func(table, pk string, extra ...Column) NavigationTable {
		columns := []Column{idCol(pk), textCol("name"), textCol("description")}
		columns = append(columns, extra...)
		return NavigationTable{TableName: table, PrimaryKey: pk, NameColumn: "name", Columns: columns}
	}

	return &Analysis{
		MainTable:      "datasets",
		MainPrimaryKey: "dataset_id",
		MainColumns: []Column{
			{Name: "dataset_id", DataType: "bigint", Primary: true, Ordinal: 1},
			{Name: "name", DataType: "text", Ordinal: 2},
			{Name: "accelerator_id", DataType: "bigint", Nullable: true, Ordinal: 3},
			{Name: "stage_id", DataType: "bigint", Nullable: true, Ordinal: 4},
			{Name: "campaign_id", DataType: "bigint", Nullable: true, Ordinal: 5},
			{Name: "detector_id", DataType: "bigint", Nullable: true, Ordinal: 6},
			{Name: "metadata", DataType: "jsonb", Ordinal: 7},
			{Name: "created_at", DataType: "timestamp without time zone", Ordinal: 8},
			{Name: "last_edited_at", DataType: "timestamp without time zone", Ordinal: 9},
		},
		Navigation: map[string]NavigationTable{
			"accelerator": nav("accelerators", "accelerator_id"),
			"stage":       nav("stages", "stage_id"),
			"campaign":    nav("campaigns", "campaign_id"),
			"detector":    nav("detectors", "detector_id", Column{Name: "accelerator_id", DataType: "bigint", Nullable: true}),
		},
		NavigationOrder: []string{"accelerator", "stage", "campaign", "detector"},
		MetadataKeys:    map[string]bool{"energy": true, "status": true, "n-events": true},
		MetadataNested:  map[string]bool{"files.good": true},
	}
}

/*
TestAssignAliases verifies the deterministic alias derivation, including the
reserved main alias and prefix collisions.
*/
func TestAssignAliases(t *testing.T) {
	tests := []struct {
		name  string
		order []string
		want  map[string]string
	}{
		{
			name:  "fcc_defaults",
			order: []string{"accelerator", "stage", "campaign", "detector"},
			want:  map[string]string{"accelerator": "acc", "stage": "sta", "campaign": "cam", "detector": "det"},
		},
		{
			name:  "three_char_collision_extends_to_four",
			order: []string{"campaign", "camera"},
			want:  map[string]string{"campaign": "cam", "camera": "came"},
		},
		{
			name:  "exhausted_prefixes_get_counter",
			order: []string{"camp", "campaign", "campfire"},
			want:  map[string]string{"camp": "cam", "campaign": "camp", "campfire": "cam1"},
		},
		{
			name: "short_key_shadowing_main_alias",
			// A key that is literally "d" must not steal the main alias.
			order: []string{"d"},
			want:  map[string]string{"d": "d1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, assignAliases(tt.order))
		})
	}
}

/*
TestNewPlan_Fragments checks the generated FROM/JOIN fragment, SELECT
projection, and global-search field list against the canonical FCC layout.
*/
func TestNewPlan_Fragments(t *testing.T) {
	plan, err := NewPlan(fccAnalysis())
	require.NoError(t, err)

	assert.Equal(t,
		"FROM datasets d"+
			" LEFT JOIN accelerators acc ON d.accelerator_id = acc.accelerator_id"+
			" LEFT JOIN stages sta ON d.stage_id = sta.stage_id"+
			" LEFT JOIN campaigns cam ON d.campaign_id = cam.campaign_id"+
			" LEFT JOIN detectors det ON d.detector_id = det.detector_id",
		plan.FromAndJoins)

	assert.Equal(t,
		"d.*, acc.name AS accelerator_name, sta.name AS stage_name, cam.name AS campaign_name, det.name AS detector_name",
		plan.SelectFields)

	require.Len(t, plan.GlobalSearchFields, 6)
	assert.Equal(t, "d.name", plan.GlobalSearchFields[0].SQL)
	assert.Equal(t, "jsonb_values_to_text(d.metadata)", plan.GlobalSearchFields[1].SQL)
	assert.True(t, plan.GlobalSearchFields[1].IsMetadataBlob)
	assert.Equal(t, "acc.name", plan.GlobalSearchFields[2].SQL)
	assert.Equal(t, "det.name", plan.GlobalSearchFields[5].SQL)
}

/*
TestNewPlan_RejectsUnsafeIdentifiers ensures nothing outside the identifier
whitelist can ever be templated into SQL.
*/
func TestNewPlan_RejectsUnsafeIdentifiers(t *testing.T) {
	analysis := fccAnalysis()
	analysis.Navigation["detector"] = NavigationTable{
		TableName:  "detectors; DROP TABLE datasets",
		PrimaryKey: "detector_id",
		NameColumn: "name",
	}

	_, err := NewPlan(analysis)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsafe")
}

/*
TestNavigationKey covers bare and _name-suffixed entity spellings.
*/
func TestNavigationKey(t *testing.T) {
	analysis := fccAnalysis()

	key, ok := analysis.NavigationKey("detector")
	require.True(t, ok)
	assert.Equal(t, "detector", key)

	key, ok = analysis.NavigationKey("detector_name")
	require.True(t, ok)
	assert.Equal(t, "detector", key)

	_, ok = analysis.NavigationKey("nonexistent")
	assert.False(t, ok)
}

/*
TestBuildAnalysis exercises the pure assembly of discovery rows into the
analysis record: entity keys, ordinal ordering, name-column fallbacks, and
the primary-key convention fallback.
*/
func TestBuildAnalysis(t *testing.T) {
	tables := map[string]*discoveredTable{
		"datasets": {
			primaryKey: "dataset_id",
			columns: []Column{
				{Name: "dataset_id", DataType: "bigint", Primary: true, Ordinal: 1},
				{Name: "name", DataType: "text", Ordinal: 2},
				{Name: "detector_id", DataType: "bigint", Nullable: true, Ordinal: 3},
				{Name: "campaign_id", DataType: "bigint", Nullable: true, Ordinal: 4},
				{Name: "metadata", DataType: "jsonb", Ordinal: 5},
			},
		},
		"detectors": {
			primaryKey: "detector_id",
			columns: []Column{
				{Name: "detector_id", DataType: "bigint", Primary: true, Ordinal: 1},
				{Name: "name", DataType: "text", Ordinal: 2},
			},
		},
		// No declared primary key and no "name" column: exercises both
		// fallbacks at once.
		"campaigns": {
			columns: []Column{
				{Name: "campaign_id", DataType: "bigint", Ordinal: 1},
				{Name: "label", DataType: "character varying", Ordinal: 2},
			},
		},
	}
	edges := []foreignKeyEdge{
		{TableName: "datasets", ColumnName: "detector_id", ReferencedTable: "detectors", ReferencedColumn: "detector_id"},
		{TableName: "datasets", ColumnName: "campaign_id", ReferencedTable: "campaigns", ReferencedColumn: "campaign_id"},
	}

	analysis, err := buildAnalysis("datasets", tables, edges, map[string]bool{"energy": true}, nil, nil, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, "dataset_id", analysis.MainPrimaryKey)
	assert.Equal(t, []string{"detector", "campaign"}, analysis.NavigationOrder)

	detector := analysis.Navigation["detector"]
	assert.Equal(t, "detectors", detector.TableName)
	assert.Equal(t, "name", detector.NameColumn)

	campaign := analysis.Navigation["campaign"]
	assert.Equal(t, "campaign_id", campaign.PrimaryKey, "falls back to singular(table)+_id")
	assert.Equal(t, "label", campaign.NameColumn, "falls back to first textual column")

	assert.True(t, analysis.IsMetadataKey("energy"))
	assert.False(t, analysis.IsMetadataKey("unknown"))
}

/*
TestBuildAnalysis_OrderOverride checks the navigation.order setting: listed
keys lead, unknown keys are dropped, unlisted discovered keys are appended.
*/
func TestBuildAnalysis_OrderOverride(t *testing.T) {
	tables := map[string]*discoveredTable{
		"datasets": {
			primaryKey: "dataset_id",
			columns: []Column{
				{Name: "dataset_id", DataType: "bigint", Primary: true, Ordinal: 1},
				{Name: "accelerator_id", DataType: "bigint", Ordinal: 2},
				{Name: "detector_id", DataType: "bigint", Ordinal: 3},
			},
		},
		"accelerators": {primaryKey: "accelerator_id", columns: []Column{{Name: "accelerator_id", DataType: "bigint", Ordinal: 1}, {Name: "name", DataType: "text", Ordinal: 2}}},
		"detectors":    {primaryKey: "detector_id", columns: []Column{{Name: "detector_id", DataType: "bigint", Ordinal: 1}, {Name: "name", DataType: "text", Ordinal: 2}}},
	}
	edges := []foreignKeyEdge{
		{TableName: "datasets", ColumnName: "accelerator_id", ReferencedTable: "accelerators", ReferencedColumn: "accelerator_id"},
		{TableName: "datasets", ColumnName: "detector_id", ReferencedTable: "detectors", ReferencedColumn: "detector_id"},
	}

	analysis, err := buildAnalysis("datasets", tables, edges, nil, nil, []string{"detector", "ghost"}, slog.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{"detector", "accelerator"}, analysis.NavigationOrder)
}
