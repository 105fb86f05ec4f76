// Copyright (c) 2026 CERN for the benefit of the FCC collaboration. All rights reserved.

package gclql

import (
	"strings"
)

// tokenKind enumerates the lexical token classes of the query language.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokDot
	tokOp     // = != > < >= <= : =~ !~
	tokIdent  // [A-Za-z_][A-Za-z0-9_-]*
	tokString // '...' or "..." with escapes
	tokNumber // signed integer or decimal
	tokStar   // *
	tokAnd    // uppercase keyword
	tokOr
	tokNot
)

// token is one lexeme with its source position for error reporting.
type token struct {
	kind tokenKind
	text string
	pos  int
}

// lex splits the input into tokens. The keywords AND, OR, NOT are
// case-sensitive uppercase; lowercase spellings lex as plain identifiers.
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0

	for i < len(input) {
		c := input[i]

		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		case c == '(':
			tokens = append(tokens, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == '.':
			tokens = append(tokens, token{kind: tokDot, text: ".", pos: i})
			i++
		case c == '*':
			tokens = append(tokens, token{kind: tokStar, text: "*", pos: i})
			i++

		case c == '"' || c == '\'':
			text, next, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokString, text: text, pos: i})
			i = next

		case c == '=':
			if i+1 < len(input) && input[i+1] == '~' {
				tokens = append(tokens, token{kind: tokOp, text: "=~", pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokOp, text: "=", pos: i})
				i++
			}
		case c == '!':
			if i+1 < len(input) && (input[i+1] == '=' || input[i+1] == '~') {
				tokens = append(tokens, token{kind: tokOp, text: input[i : i+2], pos: i})
				i += 2
			} else {
				return nil, &SyntaxError{Pos: i, Msg: `"!" must be followed by "=" or "~"`}
			}
		case c == '>' || c == '<':
			if i+1 < len(input) && input[i+1] == '=' {
				tokens = append(tokens, token{kind: tokOp, text: input[i : i+2], pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokOp, text: string(c), pos: i})
				i++
			}
		case c == ':':
			tokens = append(tokens, token{kind: tokOp, text: ":", pos: i})
			i++

		case isDigit(c) || ((c == '-' || c == '+') && i+1 < len(input) && isDigit(input[i+1])):
			text, next := lexNumber(input, i)
			tokens = append(tokens, token{kind: tokNumber, text: text, pos: i})
			i = next

		case isIdentStart(c):
			text, next := lexIdent(input, i)
			tokens = append(tokens, token{kind: keywordOrIdent(text), text: text, pos: i})
			i = next

		default:
			return nil, &SyntaxError{Pos: i, Msg: "unexpected character " + strings.TrimSpace(string(c))}
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(input)})
	return tokens, nil
}

// lexString scans a quoted literal starting at input[start] and returns the
// unescaped text plus the index past the closing quote.
func lexString(input string, start int) (string, int, error) {
	quote := input[start]
	var out strings.Builder

	i := start + 1
	for i < len(input) {
		c := input[i]
		switch {
		case c == '\\' && i+1 < len(input):
			next := input[i+1]
			switch next {
			case 'n':
				out.WriteByte('\n')
			case 't':
				out.WriteByte('\t')
			case 'r':
				out.WriteByte('\r')
			default:
				// \" \' \\ and any other escaped character pass through.
				out.WriteByte(next)
			}
			i += 2
		case c == quote:
			return out.String(), i + 1, nil
		default:
			out.WriteByte(c)
			i++
		}
	}

	return "", 0, &SyntaxError{Pos: start, Msg: "unterminated string literal"}
}

// lexNumber scans [+-]?digits[.digits] starting at input[start].
func lexNumber(input string, start int) (string, int) {
	i := start
	if input[i] == '-' || input[i] == '+' {
		i++
	}
	for i < len(input) && isDigit(input[i]) {
		i++
	}
	if i < len(input) && input[i] == '.' && i+1 < len(input) && isDigit(input[i+1]) {
		i++
		for i < len(input) && isDigit(input[i]) {
			i++
		}
	}
	return input[start:i], i
}

// lexIdent scans [A-Za-z_][A-Za-z0-9_-]* starting at input[start].
func lexIdent(input string, start int) (string, int) {
	i := start + 1
	for i < len(input) && isIdentPart(input[i]) {
		i++
	}
	return input[start:i], i
}

// keywordOrIdent gives the uppercase keywords priority over plain
// identifiers.
func keywordOrIdent(text string) tokenKind {
	switch text {
	case "AND":
		return tokAnd
	case "OR":
		return tokOr
	case "NOT":
		return tokNot
	}
	return tokIdent
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-'
}
