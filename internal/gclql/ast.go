// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

/*
Package gclql implements the catalog's structured query language: a compact
SQL/LogQL-inspired grammar of field comparisons, boolean operators, and bare
global-search literals, translated into parameterized PostgreSQL WHERE
clauses.

# Architecture

The package is split along the classic pipeline:

  - Lexer/Parser: turn the query string into an AST (no schema knowledge).
  - Translator: walk the AST against the frozen JOIN plan and emit
    (where SQL, parameters).
  - Compiler: the public entry point; on a syntax error it falls back to the
    hybrid rescue path instead of failing the request.

A parser or translator instance is cheap and holds per-invocation state, so
callers construct one per query rather than sharing across goroutines.
*/
package gclql

import "fmt"

// # AST

// Node is the sum type of query AST nodes: [Comparison], [GlobalSearch],
// [Not], [And], and [Or].
type Node interface {
	node()
}

// Field is a dotted identifier path. The first element selects a column or
// navigation entity; the remaining elements index into the JSON metadata.
type Field struct {
	Parts []string
}

// String renders the field back in its query-language spelling.
func (f Field) String() string {
	out := ""
	for i, part := range f.Parts {
		if i > 0 {
			out += "."
		}
		out += part
	}
	return out
}

// ValueKind discriminates how a comparison value was written. Quote
// provenance matters downstream: quoted global searches use substring
// matching, unquoted ones trigram similarity.
type ValueKind int

const (
	// ValueNone marks the absent value of a bare "field:" existence form.
	ValueNone ValueKind = iota
	// ValueString is a single- or double-quoted literal.
	ValueString
	// ValueNumber is a signed integer or decimal literal.
	ValueNumber
	// ValueIdent is a bare word.
	ValueIdent
	// ValueStar is the literal "*".
	ValueStar
)

// Value is a comparison operand with its lexical provenance.
type Value struct {
	Kind ValueKind
	Text string
}

// IsNumeric reports whether the value was written as a number literal.
func (v Value) IsNumeric() bool { return v.Kind == ValueNumber }

// IsEmpty reports whether the value is absent or an empty literal.
func (v Value) IsEmpty() bool { return v.Kind == ValueNone || v.Text == "" }

// Comparison is a "field OP value" predicate. For the ":" operator the
// value may be absent (existence form).
type Comparison struct {
	Field Field
	Op    string
	Value Value
}

// GlobalSearch is a bare literal matched against the curated global-search
// field list. Quoted tracks whether the literal was written as a string.
type GlobalSearch struct {
	Value  string
	Quoted bool
}

// Not negates a term.
type Not struct {
	Term Node
}

// And is a conjunction.
type And struct {
	Left, Right Node
}

// Or is a disjunction.
type Or struct {
	Left, Right Node
}

func (Comparison) node()   {}
func (GlobalSearch) node() {}
func (Not) node()          {}
func (And) node()          {}
func (Or) node()           {}

// # Errors

// SyntaxError reports that a non-empty query cannot be accepted by the
// grammar. The compiler's hybrid rescue absorbs it; it only surfaces to
// callers of [Parse] directly.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("gclql: syntax error at position %d: %s", e.Pos, e.Msg)
}
