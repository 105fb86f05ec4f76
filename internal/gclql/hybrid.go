// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package gclql

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/hep-fcc/datacat/internal/schema"
)

// andSplitter cuts a query on the AND keyword for the rescue path. Case
// insensitive on purpose: inputs reaching this path already failed the
// strict uppercase grammar.
var andSplitter = regexp.MustCompile(`(?i)\s+AND\s+`)

// Compiler is the public entry point of the package. It never fails a
// request over query syntax: inputs the strict grammar rejects are rescued
// into a best-effort hybrid of structured filters and fuzzy search.
type Compiler struct {
	plan   *schema.Plan
	logger *slog.Logger
}

// NewCompiler creates a compiler bound to a frozen JOIN plan.
func NewCompiler(plan *schema.Plan, logger *slog.Logger) *Compiler {
	return &Compiler{plan: plan, logger: logger.With(slog.String("component", "gclql"))}
}

// Compile turns a raw query into (where SQL, ordered parameters).
//
// An empty query compiles to an empty WHERE clause. A valid query compiles
// through the strict grammar. An invalid query goes through the rescue
// path; Compile itself never returns an error.
func (c *Compiler) Compile(query string) (string, []any) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", nil
	}

	node, err := Parse(query)
	if err == nil {
		where, params, terr := NewTranslator(c.plan).Translate(node)
		if terr == nil {
			return where, params
		}
		err = terr
	}

	c.logger.Debug("query rejected by strict grammar, using hybrid rescue",
		slog.String("query", query),
		slog.String("reason", err.Error()))

	return c.rescue(query)
}

// rescue splits the raw query on AND, keeps every fragment that parses and
// translates on its own as a structured filter, and folds the rest into one
// fuzzy global search. The combined AST is translated in a single pass so
// placeholder numbering stays contiguous.
func (c *Compiler) rescue(query string) (string, []any) {
	var (
		structured []Node
		residue    []string
	)

	for _, fragment := range andSplitter.Split(query, -1) {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}

		node, err := Parse(fragment)
		if err == nil && node != nil {
			if _, _, terr := NewTranslator(c.plan).Translate(node); terr == nil {
				structured = append(structured, node)
				continue
			}
		}
		residue = append(residue, fragment)
	}

	combined := conjoin(structured)

	if len(residue) > 0 {
		raw := strings.Join(residue, " ")
		search := GlobalSearch{
			Value: stripQuotes(raw),
			// Quote provenance is judged on the whole input: a dangling
			// quote anywhere signals the user wanted literal matching.
			Quoted: strings.ContainsAny(query, `"'`),
		}
		if combined == nil {
			combined = search
		} else {
			combined = And{Left: combined, Right: search}
		}
	}

	if combined == nil {
		return "TRUE", nil
	}

	where, params, err := NewTranslator(c.plan).Translate(combined)
	if err != nil {
		// The fragments were individually validated, so this is not
		// reachable through user input.
		c.logger.Warn("hybrid rescue failed to translate", slog.String("query", query), slog.Any("error", err))
		return "TRUE", nil
	}
	return where, params
}

// conjoin folds nodes into a left-leaning AND chain.
func conjoin(nodes []Node) Node {
	var out Node
	for _, node := range nodes {
		if out == nil {
			out = node
		} else {
			out = And{Left: out, Right: node}
		}
	}
	return out
}

// stripQuotes removes quote characters from rescue residue so a dangling or
// unbalanced literal still searches on its content.
func stripQuotes(s string) string {
	s = strings.ReplaceAll(s, `"`, "")
	s = strings.ReplaceAll(s, `'`, "")
	return strings.TrimSpace(s)
}
