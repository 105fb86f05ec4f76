// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePath = "/eos/experiment/fcc/ee/generation/DelphesEvents/winter2023/IDEA/p8_ee_ZZ_ecm240"

/*
TestNavigationFromPath pins the positional path convention: non-empty
segments, 0-based indexes 4/6/7/8, and the "…Events" stage suffix.
*/
func TestNavigationFromPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want map[string]string
	}{
		{
			name: "full_production_path",
			path: samplePath,
			want: map[string]string{
				EntityAccelerator: "generation",
				EntityStage:       "winter2023",
				EntityCampaign:    "IDEA",
				EntityDetector:    "p8_ee_ZZ_ecm240",
			},
		},
		{
			name: "events_suffix_stripped",
			path: "/a/b/c/d/FCCee/x/DelphesEvents/winter2023/IDEA",
			want: map[string]string{
				EntityAccelerator: "FCCee",
				EntityStage:       "Delphes",
				EntityCampaign:    "winter2023",
				EntityDetector:    "IDEA",
			},
		},
		{
			name: "short_path_yields_prefix_only",
			path: "/a/b/c/d/FCCee",
			want: map[string]string{EntityAccelerator: "FCCee"},
		},
		{
			name: "duplicate_slashes_are_collapsed",
			path: "//a//b//c//d//FCCee//skip//SimEvents",
			want: map[string]string{EntityAccelerator: "FCCee", EntityStage: "Sim"},
		},
		{
			name: "empty_path",
			path: "",
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NavigationFromPath(tt.path))
		})
	}
}

/*
TestParseDocument covers the record shaping rules: name extraction with the
generated fallback, description whitespace collapse, and string-to-float
coercion of the known numeric fields.
*/
func TestParseDocument(t *testing.T) {
	raw := []byte(`{
		"processes": [
			{
				"process-name": "p8_ee_ZH_ecm240",
				"path": "` + samplePath + `",
				"description": "  Higgsstrahlung\n\tat 240 GeV  ",
				"cross-section": "0.201868",
				"k-factor": 1.1,
				"n-events": 1000000,
				"status": "done"
			},
			{
				"comment": "entry without a name"
			}
		]
	}`)

	records, err := ParseDocument(raw)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "p8_ee_ZH_ecm240", first.Name)
	assert.NotContains(t, first.Metadata, "process-name")
	assert.Equal(t, "Higgsstrahlung at 240 GeV", first.Metadata["description"])
	assert.Equal(t, 0.201868, first.Metadata["cross-section"], "string numeric coerced")
	assert.Equal(t, 1.1, first.Metadata["k-factor"], "native numeric untouched")
	assert.Equal(t, float64(1000000), first.Metadata["n-events"])
	assert.Equal(t, "done", first.Metadata["status"])
	assert.Equal(t, "generation", first.Navigation[EntityAccelerator])

	second := records[1]
	assert.True(t, strings.HasPrefix(second.Name, "unnamed_"), "fallback name generated")
	parts := strings.Split(second.Name, "_")
	require.Len(t, parts, 4)
	assert.Len(t, parts[2], 8, "uuid fragment is 8 hex chars")
	assert.Equal(t, "1", parts[3], "record index suffix")
	assert.Equal(t, "entry without a name", second.Metadata["comment"])
	assert.Empty(t, second.Navigation)
}

func TestParseDocument_Invalid(t *testing.T) {
	_, err := ParseDocument([]byte("not json"))
	require.Error(t, err)

	_, err = ParseDocument([]byte(`{"processes": []}`))
	require.Error(t, err)

	_, err = ParseDocument([]byte(`{}`))
	require.Error(t, err)
}

func TestCollapseWhitespace(t *testing.T) {
	assert.Equal(t, "a b c", collapseWhitespace("  a\n\tb   c "))
	assert.Equal(t, "", collapseWhitespace("   "))
}
