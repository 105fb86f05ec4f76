// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package gclql

import (
	"strings"
)

/*
Parse turns a query string into its AST.

# Grammar

	expr    ::= expr "OR" term | term
	term    ::= term "AND" factor | factor
	factor  ::= "NOT" item | item
	item    ::= "(" expr ")" | comparison | global_search
	comparison    ::= field OP value?        (value optional for ":")
	field         ::= IDENT ("." IDENT)*
	global_search ::= STRING | NUMBER | IDENT | "*"

Precedence is OR < AND < NOT, enforced by the rule layering. An empty or
whitespace-only input is not a syntax error; Parse returns (nil, nil) and
the caller treats it as match-everything.
*/
func Parse(input string) (Node, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}

	tokens, err := lex(input)
	if err != nil {
		return nil, err
	}

	parser := &parser{tokens: tokens}
	node, err := parser.parseExpr()
	if err != nil {
		return nil, err
	}

	if tok := parser.peek(); tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: tok.pos, Msg: "unexpected " + describe(tok)}
	}

	return node, nil
}

// parser is a recursive-descent parser over the token stream. One instance
// per Parse call; never shared.
type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (Node, error) {
	left, err := p.parseFactor()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokAnd {
		p.next()
		right, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		left = And{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseFactor() (Node, error) {
	if p.peek().kind == tokNot {
		p.next()
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		return Not{Term: item}, nil
	}
	return p.parseItem()
}

func (p *parser) parseItem() (Node, error) {
	tok := p.peek()

	switch tok.kind {
	case tokLParen:
		p.next()
		node, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, &SyntaxError{Pos: closing.pos, Msg: `expected ")"`}
		}
		return node, nil

	case tokIdent:
		return p.parseComparisonOrSearch()

	case tokString:
		p.next()
		return GlobalSearch{Value: tok.text, Quoted: true}, nil

	case tokNumber:
		p.next()
		return GlobalSearch{Value: tok.text}, nil

	case tokStar:
		p.next()
		return GlobalSearch{Value: "*"}, nil
	}

	return nil, &SyntaxError{Pos: tok.pos, Msg: "expected a predicate, got " + describe(tok)}
}

// parseComparisonOrSearch disambiguates "field OP value" from a bare
// identifier search by looking past the dotted field path.
func (p *parser) parseComparisonOrSearch() (Node, error) {
	first := p.next()
	parts := []string{first.text}

	for p.peek().kind == tokDot {
		p.next()
		part := p.next()
		if part.kind != tokIdent {
			return nil, &SyntaxError{Pos: part.pos, Msg: `expected identifier after "."`}
		}
		parts = append(parts, part.text)
	}

	if p.peek().kind != tokOp {
		// A single bare identifier is a global search; a dotted path
		// without an operator is not valid in the strict grammar.
		if len(parts) == 1 {
			return GlobalSearch{Value: first.text}, nil
		}
		return nil, &SyntaxError{Pos: p.peek().pos, Msg: "expected operator after field path"}
	}

	op := p.next()

	value, err := p.parseValue(op.text)
	if err != nil {
		return nil, err
	}

	return Comparison{Field: Field{Parts: parts}, Op: op.text, Value: value}, nil
}

// parseValue reads the comparison operand. Only the ":" operator may omit
// it, yielding the existence form "field:".
func (p *parser) parseValue(op string) (Value, error) {
	tok := p.peek()

	switch tok.kind {
	case tokString:
		p.next()
		return Value{Kind: ValueString, Text: tok.text}, nil
	case tokNumber:
		p.next()
		return Value{Kind: ValueNumber, Text: tok.text}, nil
	case tokIdent:
		p.next()
		return Value{Kind: ValueIdent, Text: tok.text}, nil
	case tokStar:
		p.next()
		return Value{Kind: ValueStar, Text: "*"}, nil
	}

	if op == ":" {
		return Value{Kind: ValueNone}, nil
	}
	return Value{}, &SyntaxError{Pos: tok.pos, Msg: "expected a value after " + op}
}

func describe(tok token) string {
	if tok.kind == tokEOF {
		return "end of query"
	}
	return `"` + tok.text + `"`
}
