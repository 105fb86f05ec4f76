// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package gclql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
TestParse_Comparisons covers the comparison forms: every operator, dotted
metadata paths, quoted and numeric values, and the bare existence form.
*/
func TestParse_Comparisons(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Node
	}{
		{
			name:  "contains",
			query: "detector:IDEA",
			want:  Comparison{Field: Field{Parts: []string{"detector"}}, Op: ":", Value: Value{Kind: ValueIdent, Text: "IDEA"}},
		},
		{
			name:  "equality_with_quoted_value",
			query: `name = "winter 2026"`,
			want:  Comparison{Field: Field{Parts: []string{"name"}}, Op: "=", Value: Value{Kind: ValueString, Text: "winter 2026"}},
		},
		{
			name:  "numeric_greater_than_on_metadata_path",
			query: "metadata.energy > 100",
			want:  Comparison{Field: Field{Parts: []string{"metadata", "energy"}}, Op: ">", Value: Value{Kind: ValueNumber, Text: "100"}},
		},
		{
			name:  "negative_decimal",
			query: "metadata.cross-section <= -1.5",
			want:  Comparison{Field: Field{Parts: []string{"metadata", "cross-section"}}, Op: "<=", Value: Value{Kind: ValueNumber, Text: "-1.5"}},
		},
		{
			name:  "regex_match",
			query: "name =~ idea_.*",
			want:  Comparison{Field: Field{Parts: []string{"name"}}, Op: "=~", Value: Value{Kind: ValueIdent, Text: "idea_.*"}},
		},
		{
			name:  "negated_regex",
			query: `name !~ "^test"`,
			want:  Comparison{Field: Field{Parts: []string{"name"}}, Op: "!~", Value: Value{Kind: ValueString, Text: "^test"}},
		},
		{
			name:  "existence_star",
			query: "metadata.status:*",
			want:  Comparison{Field: Field{Parts: []string{"metadata", "status"}}, Op: ":", Value: Value{Kind: ValueStar, Text: "*"}},
		},
		{
			name:  "bare_colon_existence",
			query: "last_edited_at:",
			want:  Comparison{Field: Field{Parts: []string{"last_edited_at"}}, Op: ":", Value: Value{Kind: ValueNone}},
		},
		{
			name:  "not_equal",
			query: "status != done",
			want:  Comparison{Field: Field{Parts: []string{"status"}}, Op: "!=", Value: Value{Kind: ValueIdent, Text: "done"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := Parse(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, node)
		})
	}
}

/*
TestParse_BooleanPrecedence verifies OR < AND < NOT and that parentheses
override the default layering.
*/
func TestParse_BooleanPrecedence(t *testing.T) {
	cmp := func(field, op, text string, kind ValueKind) Comparison {
		return Comparison{Field: Field{Parts: []string{field}}, Op: op, Value: Value{Kind: kind, Text: text}}
	}

	t.Run("and_binds_tighter_than_or", func(t *testing.T) {
		node, err := Parse("detector:IDEA AND stage:sim OR campaign:spring")
		require.NoError(t, err)
		assert.Equal(t, Or{
			Left: And{
				Left:  cmp("detector", ":", "IDEA", ValueIdent),
				Right: cmp("stage", ":", "sim", ValueIdent),
			},
			Right: cmp("campaign", ":", "spring", ValueIdent),
		}, node)
	})

	t.Run("parentheses_override", func(t *testing.T) {
		node, err := Parse("detector:IDEA AND (stage:sim OR campaign:spring)")
		require.NoError(t, err)
		assert.Equal(t, And{
			Left: cmp("detector", ":", "IDEA", ValueIdent),
			Right: Or{
				Left:  cmp("stage", ":", "sim", ValueIdent),
				Right: cmp("campaign", ":", "spring", ValueIdent),
			},
		}, node)
	})

	t.Run("not_binds_to_single_item", func(t *testing.T) {
		node, err := Parse("NOT detector:IDEA AND stage:sim")
		require.NoError(t, err)
		assert.Equal(t, And{
			Left:  Not{Term: cmp("detector", ":", "IDEA", ValueIdent)},
			Right: cmp("stage", ":", "sim", ValueIdent),
		}, node)
	})

	t.Run("lowercase_keywords_are_identifiers", func(t *testing.T) {
		// "and" is a value here, not a keyword.
		node, err := Parse("status:and")
		require.NoError(t, err)
		assert.Equal(t, cmp("status", ":", "and", ValueIdent), node)
	})
}

/*
TestParse_GlobalSearch covers the bare-literal forms and their quote
provenance.
*/
func TestParse_GlobalSearch(t *testing.T) {
	t.Run("bare_identifier", func(t *testing.T) {
		node, err := Parse("higgs")
		require.NoError(t, err)
		assert.Equal(t, GlobalSearch{Value: "higgs"}, node)
	})

	t.Run("quoted_literal", func(t *testing.T) {
		node, err := Parse(`"winter campaign"`)
		require.NoError(t, err)
		assert.Equal(t, GlobalSearch{Value: "winter campaign", Quoted: true}, node)
	})

	t.Run("single_quoted_literal", func(t *testing.T) {
		node, err := Parse("'IDEA'")
		require.NoError(t, err)
		assert.Equal(t, GlobalSearch{Value: "IDEA", Quoted: true}, node)
	})

	t.Run("star_matches_everything", func(t *testing.T) {
		node, err := Parse("*")
		require.NoError(t, err)
		assert.Equal(t, GlobalSearch{Value: "*"}, node)
	})

	t.Run("number_literal", func(t *testing.T) {
		node, err := Parse("365")
		require.NoError(t, err)
		assert.Equal(t, GlobalSearch{Value: "365"}, node)
	})

	t.Run("escapes_in_quoted_literal", func(t *testing.T) {
		node, err := Parse(`"a\tb\"c"`)
		require.NoError(t, err)
		assert.Equal(t, GlobalSearch{Value: "a\tb\"c", Quoted: true}, node)
	})
}

/*
TestParse_Empty verifies that blank input is not a syntax error.
*/
func TestParse_Empty(t *testing.T) {
	for _, query := range []string{"", "   ", "\t\n"} {
		node, err := Parse(query)
		require.NoError(t, err)
		assert.Nil(t, node)
	}
}

/*
TestParse_SyntaxErrors enumerates inputs the strict grammar must reject;
the compiler's rescue path depends on these being errors rather than being
silently misparsed.
*/
func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"juxtaposed_words", "foo bar baz"},
		{"dangling_operator", "detector ="},
		{"unterminated_string", `name:"broken`},
		{"unbalanced_paren", "(detector:IDEA"},
		{"dotted_path_without_operator", "metadata.energy"},
		{"dangling_and", "detector:IDEA AND"},
		{"lone_not", "NOT"},
		{"bang_without_comparator", "status ! done"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.query)
			require.Error(t, err)

			var syntaxErr *SyntaxError
			assert.ErrorAs(t, err, &syntaxErr)
		})
	}
}
