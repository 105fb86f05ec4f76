// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package gclql

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCompiler(t *testing.T) *Compiler {
	t.Helper()
	return NewCompiler(testPlan(t), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

/*
TestCompile_StrictPath verifies that valid queries bypass the rescue and
empty queries compile to no WHERE clause at all.
*/
func TestCompile_StrictPath(t *testing.T) {
	compiler := testCompiler(t)

	t.Run("empty_query", func(t *testing.T) {
		where, params := compiler.Compile("   ")
		assert.Empty(t, where)
		assert.Nil(t, params)
	})

	t.Run("valid_query", func(t *testing.T) {
		where, params := compiler.Compile("detector:IDEA AND metadata.energy > 100")
		assert.Equal(t,
			"(det.name ILIKE '%' || $1 || '%' AND (d.metadata ->> 'energy')::numeric > $2)",
			where)
		assert.Equal(t, []any{"IDEA", int64(100)}, params)
	})
}

/*
TestCompile_HybridRescue covers the fallback: free text becomes fuzzy
search, parseable fragments survive as structured filters, and the two
compose with contiguous placeholder numbering.
*/
func TestCompile_HybridRescue(t *testing.T) {
	compiler := testCompiler(t)

	t.Run("free_text_becomes_fuzzy_search", func(t *testing.T) {
		where, params := compiler.Compile("foo bar baz")
		assert.Equal(t,
			"(similarity($1, d.name) > 0.6"+
				" OR word_similarity($1, jsonb_values_to_text(d.metadata)) > 0.4"+
				" OR similarity($1, acc.name) > 0.6"+
				" OR similarity($1, sta.name) > 0.6"+
				" OR similarity($1, cam.name) > 0.6"+
				" OR similarity($1, det.name) > 0.6)",
			where)
		assert.Equal(t, []any{"foo bar baz"}, params)
	})

	t.Run("structured_fragment_survives", func(t *testing.T) {
		where, params := compiler.Compile("detector:IDEA AND foo bar")
		assert.Equal(t,
			"(det.name ILIKE '%' || $1 || '%'"+
				" AND (similarity($2, d.name) > 0.6"+
				" OR word_similarity($2, jsonb_values_to_text(d.metadata)) > 0.4"+
				" OR similarity($2, acc.name) > 0.6"+
				" OR similarity($2, sta.name) > 0.6"+
				" OR similarity($2, cam.name) > 0.6"+
				" OR similarity($2, det.name) > 0.6))",
			where)
		assert.Equal(t, []any{"IDEA", "foo bar"}, params)
	})

	t.Run("lowercase_and_splits_fragments", func(t *testing.T) {
		where, params := compiler.Compile("detector:idea and stage:sim")
		assert.Equal(t,
			"(det.name ILIKE '%' || $1 || '%' AND sta.name ILIKE '%' || $2 || '%')",
			where)
		assert.Equal(t, []any{"idea", "sim"}, params)
	})

	t.Run("quoted_residue_uses_substring_matching", func(t *testing.T) {
		where, params := compiler.Compile(`"broken literal`)
		assert.Contains(t, where, "ILIKE '%' || $1 || '%'")
		assert.NotContains(t, where, "similarity")
		assert.Equal(t, []any{"broken literal"}, params)
	})

	t.Run("untranslatable_fragment_joins_residue", func(t *testing.T) {
		// "my-column" parses but cannot be templated as an identifier, so
		// the fragment downgrades to fuzzy search.
		where, params := compiler.Compile("my-column:x AND detector:IDEA")
		require.Len(t, params, 2)
		assert.Equal(t, "IDEA", params[0])
		assert.Equal(t, "my-column:x", params[1])
		assert.Contains(t, where, "det.name ILIKE '%' || $1 || '%'")
		assert.Contains(t, where, "word_similarity($2, jsonb_values_to_text(d.metadata)) > 0.4")
	})
}
