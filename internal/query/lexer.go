// Package query implements the filter language used by list, dispatch and
// the lifecycle query helpers.
//
// The language supports:
//   - Literals: state:ready, priority:high, label:area:api, label:area:*,
//     assignee:alice
//   - Predicates: unassigned, blocked
//   - Boolean operators: AND, OR, NOT (case-insensitive)
//   - Parentheses for grouping
//
// Precedence is NOT > AND > OR; binary operators are left-associative.
//
// Example queries:
//   - state:ready AND unassigned
//   - (priority:critical OR priority:high) AND NOT blocked
//   - label:area:* AND NOT label:area:docs
package query

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType represents the type of a lexer token.
type TokenType int

const (
	TokenEOF    TokenType = iota
	TokenTerm             // literal or predicate, e.g. state:ready, blocked
	TokenAnd              // AND
	TokenOr               // OR
	TokenNot              // NOT
	TokenLParen           // (
	TokenRParen           // )
)

// String returns the string representation of a TokenType.
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenTerm:
		return "TERM"
	case TokenAnd:
		return "AND"
	case TokenOr:
		return "OR"
	case TokenNot:
		return "NOT"
	case TokenLParen:
		return "("
	case TokenRParen:
		return ")"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}

// Token represents a single token from the lexer.
type Token struct {
	Type  TokenType
	Value string // unquoted text
	Raw   string // text as written
	Pos   int    // byte offset in the input
}

// Lexer tokenizes a query string.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a new Lexer for the given input string.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	start := l.pos
	if start >= len(l.input) {
		return Token{Type: TokenEOF, Pos: start}, nil
	}

	switch l.input[start] {
	case '(':
		l.pos++
		return Token{Type: TokenLParen, Value: "(", Raw: "(", Pos: start}, nil
	case ')':
		l.pos++
		return Token{Type: TokenRParen, Value: ")", Raw: ")", Pos: start}, nil
	}
	return l.readTerm(start)
}

// readTerm reads up to whitespace or a parenthesis. Double-quoted sections
// may contain either, e.g. assignee:"Ada Lovelace".
func (l *Lexer) readTerm(start int) (Token, error) {
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '(' || c == ')' || unicode.IsSpace(rune(c)) {
			break
		}
		if c != '"' {
			sb.WriteByte(c)
			l.pos++
			continue
		}
		quoteStart := l.pos
		l.pos++
		closed := false
		for l.pos < len(l.input) {
			c = l.input[l.pos]
			l.pos++
			if c == '"' {
				closed = true
				break
			}
			if c == '\\' && l.pos < len(l.input) {
				c = l.input[l.pos]
				l.pos++
			}
			sb.WriteByte(c)
		}
		if !closed {
			return Token{}, &QuerySyntaxError{
				Token: l.input[quoteStart:],
				Pos:   quoteStart,
				Msg:   "unterminated string",
			}
		}
	}

	raw := l.input[start:l.pos]
	value := sb.String()
	tok := Token{Type: TokenTerm, Value: value, Raw: raw, Pos: start}
	if raw == value {
		switch strings.ToUpper(value) {
		case "AND":
			tok.Type = TokenAnd
		case "OR":
			tok.Type = TokenOr
		case "NOT":
			tok.Type = TokenNot
		}
	}
	return tok, nil
}

// Tokenize returns all tokens from the input, ending with TokenEOF.
func (l *Lexer) Tokenize() ([]Token, error) {
	var tokens []Token
	for {
		tok, err := l.NextToken()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			break
		}
	}
	return tokens, nil
}

// Tokenize is a convenience function that tokenizes a query string.
func Tokenize(input string) ([]Token, error) {
	return NewLexer(input).Tokenize()
}
