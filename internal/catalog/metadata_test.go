// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockKey(t *testing.T) {
	assert.Equal(t, "__description__lock__", LockKey("description"))

	field, ok := LockedField("__description__lock__")
	assert.True(t, ok)
	assert.Equal(t, "description", field)

	_, ok = LockedField("description")
	assert.False(t, ok)

	_, ok = LockedField("____lock__")
	assert.False(t, ok, "empty field name is not a sentinel")
}

/*
TestMergeMetadata_LockedFieldSurvives is the canonical curator flow: a
locked description keeps its curated value through a re-ingest that tries
to overwrite it, and the sentinel itself is preserved.
*/
func TestMergeMetadata_LockedFieldSurvives(t *testing.T) {
	existing := map[string]any{
		"description":          "curated text",
		"__description__lock__": true,
		"status":               "done",
	}
	incoming := map[string]any{
		"description": "machine-generated text",
		"status":      "running",
		"energy":      float64(365),
	}

	merged := MergeMetadata(existing, incoming)

	assert.Equal(t, "curated text", merged["description"], "locked field keeps curated value")
	assert.Equal(t, true, merged["__description__lock__"], "sentinel preserved")
	assert.Equal(t, "running", merged["status"], "unlocked field updated")
	assert.Equal(t, float64(365), merged["energy"], "new field added")
}

func TestMergeMetadata_Sentinels(t *testing.T) {
	t.Run("incoming_true_installs_lock", func(t *testing.T) {
		merged := MergeMetadata(
			map[string]any{"comment": "x"},
			map[string]any{"__comment__lock__": true},
		)
		assert.Equal(t, true, merged["__comment__lock__"])
		assert.Equal(t, "x", merged["comment"])
	})

	t.Run("incoming_null_removes_lock", func(t *testing.T) {
		merged := MergeMetadata(
			map[string]any{"comment": "x", "__comment__lock__": true},
			map[string]any{"__comment__lock__": nil},
		)
		_, present := merged["__comment__lock__"]
		assert.False(t, present)
	})

	t.Run("unlock_then_update_needs_two_merges", func(t *testing.T) {
		// The lock state consulted during a merge is the EXISTING one, so
		// removing a sentinel and overwriting its field in the same payload
		// still protects the field.
		merged := MergeMetadata(
			map[string]any{"comment": "curated", "__comment__lock__": true},
			map[string]any{"__comment__lock__": nil, "comment": "new"},
		)
		assert.Equal(t, "curated", merged["comment"])
		_, present := merged["__comment__lock__"]
		assert.False(t, present)

		merged = MergeMetadata(merged, map[string]any{"comment": "new"})
		assert.Equal(t, "new", merged["comment"])
	})
}

func TestMergeMetadata_DoesNotMutateInputs(t *testing.T) {
	existing := map[string]any{"a": 1}
	incoming := map[string]any{"b": 2}

	merged := MergeMetadata(existing, incoming)
	merged["c"] = 3

	assert.Equal(t, map[string]any{"a": 1}, existing)
	assert.Equal(t, map[string]any{"b": 2}, incoming)
}

func TestFlatten(t *testing.T) {
	record := Record{
		"dataset_id": int64(7),
		"name":       "row name",
		"metadata": map[string]any{
			"energy": float64(240),
			"name":   "metadata name loses",
		},
		"detector_name": "IDEA",
	}

	flat := Flatten(record)

	assert.Equal(t, int64(7), flat["dataset_id"])
	assert.Equal(t, "row name", flat["name"], "row column wins over metadata key")
	assert.Equal(t, float64(240), flat["energy"])
	assert.Equal(t, "IDEA", flat["detector_name"])
	_, hasNested := flat["metadata"]
	assert.False(t, hasNested, "nested document is dropped after lifting")
}

func TestNormalizeMetadata(t *testing.T) {
	assert.Equal(t, map[string]any{"k": "v"}, normalizeMetadata(map[string]any{"k": "v"}))
	assert.Equal(t, map[string]any{"k": "v"}, normalizeMetadata([]byte(`{"k":"v"}`)))
	assert.Equal(t, map[string]any{"k": "v"}, normalizeMetadata(`{"k":"v"}`))
	assert.Equal(t, map[string]any{}, normalizeMetadata(nil))
	assert.Equal(t, map[string]any{}, normalizeMetadata([]byte("not json")))
	assert.Equal(t, map[string]any{}, normalizeMetadata([]byte("null")))
}
