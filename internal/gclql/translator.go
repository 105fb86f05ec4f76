// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package gclql

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hep-fcc/datacat/internal/platform/constants"
	"github.com/hep-fcc/datacat/internal/schema"
)

// timestampLayouts are the accepted spellings for timestamp comparands,
// date-only through full seconds, space- or T-separated. All parsed as UTC.
var timestampLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// Translator walks an AST and emits a parameterized WHERE clause. It holds
// per-invocation state (the parameter list and counter), so an instance must
// not be shared across concurrent queries; construct one per call.
type Translator struct {
	plan       *schema.Plan
	params     []any
	paramIndex int
}

// NewTranslator creates a translator bound to a frozen JOIN plan.
func NewTranslator(plan *schema.Plan) *Translator {
	return &Translator{plan: plan}
}

// Translate emits (where SQL, ordered parameters) for the AST. The
// placeholder count always equals len(params), numbered $1..$n in order.
func (t *Translator) Translate(node Node) (string, []any, error) {
	t.reset()
	sql, err := t.translate(node)
	if err != nil {
		return "", nil, err
	}
	return sql, t.params, nil
}

// reset zeroes the parameter counter and list before a translation.
func (t *Translator) reset() {
	t.params = nil
	t.paramIndex = 0
}

// bind appends a parameter value and returns its "$n" placeholder.
func (t *Translator) bind(value any) string {
	t.params = append(t.params, value)
	t.paramIndex++
	return "$" + strconv.Itoa(t.paramIndex)
}

func (t *Translator) translate(node Node) (string, error) {
	switch n := node.(type) {
	case Comparison:
		return t.translateComparison(n)
	case GlobalSearch:
		return t.translateGlobalSearch(n), nil
	case Not:
		inner, err := t.translate(n.Term)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case And:
		return t.translateBinary(n.Left, n.Right, "AND")
	case Or:
		return t.translateBinary(n.Left, n.Right, "OR")
	}
	return "", fmt.Errorf("gclql: unknown AST node %T", node)
}

func (t *Translator) translateBinary(left, right Node, op string) (string, error) {
	leftSQL, err := t.translate(left)
	if err != nil {
		return "", err
	}
	rightSQL, err := t.translate(right)
	if err != nil {
		return "", err
	}
	return "(" + leftSQL + " " + op + " " + rightSQL + ")", nil
}

// # Field Resolution

// resolvedField is the SQL rendering of a query field plus the facts the
// operator translation needs.
type resolvedField struct {
	// SQL is the column expression without casts.
	SQL string
	// MetadataPath is the JSON key path when the field addresses metadata.
	MetadataPath []string
	// IsTimestamp marks main-table timestamp columns.
	IsTimestamp bool
	// IsColumn marks a plain main-table reference (known or fall-through).
	IsColumn bool
}

// resolveField maps a dotted field path onto the JOIN plan:
//
//  1. a navigation entity key (with optional "_name" suffix) becomes the
//     aliased name column;
//  2. an explicit "metadata.…" path becomes a ->/->> chain;
//  3. a bare identifier matching a harvested metadata key is auto-detected
//     as metadata;
//  4. anything else falls through to a main-table column, which the
//     database will accept or reject on its own.
func (t *Translator) resolveField(field Field) (resolvedField, error) {
	analysis := t.plan.Analysis
	head := field.Parts[0]

	if len(field.Parts) == 1 {
		if nameCol, ok := navNameColumn(t.plan, head); ok {
			return resolvedField{SQL: nameCol}, nil
		}
	}

	if head == "metadata" && len(field.Parts) > 1 {
		return metadataField(field.Parts[1:]), nil
	}

	if analysis.IsMetadataKey(head) {
		return metadataField(field.Parts), nil
	}

	if len(field.Parts) > 1 {
		// A dotted path that is neither metadata.* nor a harvested key is
		// still treated as metadata; the keys simply have not been seen yet.
		return metadataField(field.Parts), nil
	}

	if !schema.ValidIdent(head) {
		return resolvedField{}, fmt.Errorf("gclql: field %q is not a valid column reference", field.String())
	}

	return resolvedField{
		SQL:         schema.MainAlias + "." + head,
		IsTimestamp: analysis.IsTimestampColumn(head),
		IsColumn:    true,
	}, nil
}

// navNameColumn resolves an identifier (bare or "_name"-suffixed) to the
// aliased name column of a navigation entity.
func navNameColumn(plan *schema.Plan, ident string) (string, bool) {
	key, ok := plan.Analysis.NavigationKey(ident)
	if !ok {
		return "", false
	}
	return plan.NameColumnFor(key)
}

// metadataField renders d.metadata -> 'p1' -> … ->> 'pN'.
func metadataField(path []string) resolvedField {
	var sql strings.Builder
	sql.WriteString(schema.MainAlias + ".metadata")
	for i, part := range path {
		if i == len(path)-1 {
			sql.WriteString(" ->> ")
		} else {
			sql.WriteString(" -> ")
		}
		sql.WriteString(quoteJSONKey(part))
	}
	return resolvedField{SQL: sql.String(), MetadataPath: path}
}

// quoteJSONKey renders a JSON key as a SQL string literal. Keys come from
// the identifier lexer so they carry no quotes, but doubling is kept as a
// guard for programmatic callers.
func quoteJSONKey(key string) string {
	return "'" + strings.ReplaceAll(key, "'", "''") + "'"
}

// # Comparisons

func (t *Translator) translateComparison(node Comparison) (string, error) {
	field, err := t.resolveField(node.Field)
	if err != nil {
		return "", err
	}

	if node.Op == ":" {
		return t.translateContains(field, node.Value), nil
	}

	switch node.Op {
	case "=~":
		return field.SQL + " ~* " + t.bind(node.Value.Text), nil
	case "!~":
		return field.SQL + " !~* " + t.bind(node.Value.Text), nil
	}

	// Ordering and equality operators. Numbers compare numerically: JSON
	// text extraction gets a ::numeric cast, and the comparand is bound as
	// a number rather than its source text.
	columnSQL := field.SQL
	var comparand any = node.Value.Text

	if node.Value.IsNumeric() {
		if len(field.MetadataPath) > 0 {
			columnSQL = "(" + field.SQL + ")::numeric"
		}
		comparand = numericValue(node.Value.Text)
	}

	if field.IsTimestamp {
		if ts, ok := parseTimestamp(node.Value.Text); ok {
			comparand = ts
		}
		if node.Op != "=" {
			// NULL timestamps never satisfy an ordering comparison; make
			// that explicit so NOT over the predicate stays well-defined.
			return "(" + columnSQL + " IS NOT NULL AND " + columnSQL + " " + node.Op + " " + t.bind(comparand) + ")", nil
		}
	}

	return columnSQL + " " + node.Op + " " + t.bind(comparand), nil
}

// translateContains handles the ":" operator family: substring match,
// existence test, and the timestamp IS NOT NULL shorthand.
func (t *Translator) translateContains(field resolvedField, value Value) string {
	switch {
	case value.Kind == ValueStar:
		return t.existenceTest(field)

	case value.IsEmpty() && field.IsTimestamp:
		return field.SQL + " IS NOT NULL"

	default:
		return field.SQL + " ILIKE '%' || " + t.bind(value.Text) + " || '%'"
	}
}

// existenceTest emits "field:*": a key-existence probe for metadata, a
// JSON-path probe for nested metadata, and IS NOT NULL for plain columns.
func (t *Translator) existenceTest(field resolvedField) string {
	switch len(field.MetadataPath) {
	case 0:
		return field.SQL + " IS NOT NULL"
	case 1:
		return schema.MainAlias + ".metadata ? " + t.bind(field.MetadataPath[0])
	default:
		return "jsonb_path_exists(" + schema.MainAlias + ".metadata, " + t.bind(jsonPathExpr(field.MetadataPath)) + "::jsonpath)"
	}
}

// jsonPathExpr renders $."a"."b" for a nested key path.
func jsonPathExpr(path []string) string {
	var out strings.Builder
	out.WriteString("$")
	for _, part := range path {
		out.WriteString(`."`)
		out.WriteString(strings.ReplaceAll(part, `"`, `\"`))
		out.WriteString(`"`)
	}
	return out.String()
}

// # Global Search

// translateGlobalSearch ORs the search literal across the plan's
// global-search fields with a single shared parameter. Quoted literals use
// substring matching; bare literals use trigram similarity, with the
// word-level variant against the flattened metadata blob.
func (t *Translator) translateGlobalSearch(node GlobalSearch) string {
	if node.Value == "" || node.Value == "*" {
		return "TRUE"
	}

	placeholder := t.bind(node.Value)
	clauses := make([]string, 0, len(t.plan.GlobalSearchFields))

	for _, field := range t.plan.GlobalSearchFields {
		switch {
		case node.Quoted:
			clauses = append(clauses, field.SQL+" ILIKE '%' || "+placeholder+" || '%'")
		case field.IsMetadataBlob:
			clauses = append(clauses, fmt.Sprintf("word_similarity(%s, %s) > %s",
				placeholder, field.SQL, formatThreshold(constants.WordSimilarityThreshold)))
		default:
			clauses = append(clauses, fmt.Sprintf("similarity(%s, %s) > %s",
				placeholder, field.SQL, formatThreshold(constants.TrigramSimilarityThreshold)))
		}
	}

	return "(" + strings.Join(clauses, " OR ") + ")"
}

func formatThreshold(threshold float64) string {
	return strconv.FormatFloat(threshold, 'g', -1, 64)
}

// numericValue binds integers as int64 and decimals as float64.
func numericValue(text string) any {
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n
	}
	f, _ := strconv.ParseFloat(text, 64)
	return f
}

// parseTimestamp tries the supported layouts in order, interpreting the
// value as UTC. A miss falls back to string binding and lets the database
// coerce or reject.
func parseTimestamp(text string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, text, time.UTC); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// # Sort Field Resolution

// SortExpr resolves a sort_by identifier through the same field rules as
// comparisons, so "metadata.energy" and "detector_name" order exactly the
// way they filter.
func SortExpr(plan *schema.Plan, field string) (string, error) {
	parts := strings.Split(field, ".")
	for _, part := range parts {
		if part == "" {
			return "", fmt.Errorf("gclql: invalid sort field %q", field)
		}
	}

	translator := NewTranslator(plan)
	resolved, err := translator.resolveField(Field{Parts: parts})
	if err != nil {
		return "", err
	}
	return resolved.SQL, nil
}
