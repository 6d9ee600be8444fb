package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/steveyegge/weft/internal/types"
)

// Node represents a node in the query AST.
type Node interface {
	node() // marker method
	String() string
}

// StateNode matches issues in State.
type StateNode struct {
	State types.State
}

func (n *StateNode) node()          {}
func (n *StateNode) String() string { return "state:" + string(n.State) }

// PriorityNode matches issues with Priority.
type PriorityNode struct {
	Priority types.Priority
}

func (n *PriorityNode) node()          {}
func (n *PriorityNode) String() string { return "priority:" + n.Priority.String() }

// LabelNode matches issues carrying Namespace:Value. An empty Value
// (written "*") matches any value in the namespace.
type LabelNode struct {
	Namespace string
	Value     string
}

func (n *LabelNode) node() {}
func (n *LabelNode) String() string {
	if n.Value == "" {
		return "label:" + n.Namespace + ":*"
	}
	return "label:" + n.Namespace + ":" + quoteIfNeeded(n.Value)
}

// AssigneeNode matches issues assigned to Assignee.
type AssigneeNode struct {
	Assignee string
}

func (n *AssigneeNode) node()          {}
func (n *AssigneeNode) String() string { return "assignee:" + quoteIfNeeded(n.Assignee) }

// UnassignedNode matches issues without an assignee.
type UnassignedNode struct{}

func (n *UnassignedNode) node()          {}
func (n *UnassignedNode) String() string { return "unassigned" }

// BlockedNode matches open issues held back by an unmet dependency or an
// unsatisfied precheck gate.
type BlockedNode struct{}

func (n *BlockedNode) node()          {}
func (n *BlockedNode) String() string { return "blocked" }

// AndNode represents a logical AND operation.
type AndNode struct {
	Left  Node
	Right Node
}

func (n *AndNode) node() {}
func (n *AndNode) String() string {
	return fmt.Sprintf("(%s AND %s)", n.Left.String(), n.Right.String())
}

// OrNode represents a logical OR operation.
type OrNode struct {
	Left  Node
	Right Node
}

func (n *OrNode) node() {}
func (n *OrNode) String() string {
	return fmt.Sprintf("(%s OR %s)", n.Left.String(), n.Right.String())
}

// NotNode represents a logical NOT operation.
type NotNode struct {
	Operand Node
}

func (n *NotNode) node() {}
func (n *NotNode) String() string {
	return fmt.Sprintf("NOT %s", n.Operand.String())
}

func quoteIfNeeded(s string) string {
	if strings.ContainsAny(s, " \t()\"") {
		return strconv.Quote(s)
	}
	return s
}

// Parser parses a query string into an AST.
type Parser struct {
	lexer   *Lexer
	current Token
}

// NewParser creates a new Parser for the given input.
func NewParser(input string) *Parser {
	return &Parser{lexer: NewLexer(input)}
}

// Parse parses the query string and returns the root AST node.
// All errors are *QuerySyntaxError.
func (p *Parser) Parse() (Node, error) {
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.current.Type == TokenEOF {
		return nil, syntaxError(p.current, "empty query")
	}

	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}

	if p.current.Type != TokenEOF {
		return nil, syntaxError(p.current, "unexpected %s (expected end of query)", p.current.Type)
	}

	return node, nil
}

// advance moves to the next token.
func (p *Parser) advance() error {
	tok, err := p.lexer.NextToken()
	if err != nil {
		return err
	}
	p.current = tok
	return nil
}

// parseOr parses OR expressions (lowest precedence).
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &OrNode{Left: left, Right: right}
	}

	return left, nil
}

// parseAnd parses AND expressions.
func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &AndNode{Left: left, Right: right}
	}

	return left, nil
}

// parseNot parses NOT expressions.
func (p *Parser) parseNot() (Node, error) {
	if p.current.Type == TokenNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotNode{Operand: operand}, nil
	}

	return p.parsePrimary()
}

// parsePrimary parses terms and parenthesized expressions.
func (p *Parser) parsePrimary() (Node, error) {
	switch p.current.Type {
	case TokenLParen:
		open := p.current
		if err := p.advance(); err != nil {
			return nil, err
		}
		node, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.Type != TokenRParen {
			if p.current.Type == TokenEOF {
				return nil, syntaxError(open, "unclosed '('")
			}
			return nil, syntaxError(p.current, "expected ')', got %s", p.current.Type)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return node, nil
	case TokenTerm:
		node, err := parseTerm(p.current)
		if err != nil {
			return nil, err
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return node, nil
	case TokenEOF:
		return nil, syntaxError(p.current, "unexpected end of query")
	default:
		return nil, syntaxError(p.current, "expected a term, got %s", p.current.Type)
	}
}

// parseTerm turns one term token into a literal or predicate node.
func parseTerm(tok Token) (Node, error) {
	field, value, hasValue := strings.Cut(tok.Value, ":")
	field = strings.ToLower(field)

	if !hasValue {
		switch field {
		case "unassigned":
			return &UnassignedNode{}, nil
		case "blocked":
			return &BlockedNode{}, nil
		}
		return nil, syntaxError(tok, "unknown predicate (valid: unassigned, blocked, or field:value)")
	}
	if value == "" {
		return nil, syntaxError(tok, "missing value for %s", field)
	}

	switch field {
	case "state":
		st, err := types.ParseState(value)
		if err != nil {
			return nil, syntaxError(tok, "%v", err)
		}
		return &StateNode{State: st}, nil
	case "priority":
		pr, err := types.ParsePriority(value)
		if err != nil {
			return nil, syntaxError(tok, "%v", err)
		}
		return &PriorityNode{Priority: pr}, nil
	case "label":
		ns, v, ok := strings.Cut(value, ":")
		if !ok || ns == "" || v == "" {
			return nil, syntaxError(tok, "label needs namespace:value or namespace:*")
		}
		if v == "*" {
			v = ""
		}
		return &LabelNode{Namespace: ns, Value: v}, nil
	case "assignee":
		return &AssigneeNode{Assignee: value}, nil
	}
	return nil, syntaxError(tok, "unknown field %q (valid: state, priority, label, assignee)", field)
}

// Parse is a convenience function that parses a query string.
func Parse(input string) (Node, error) {
	p := NewParser(input)
	return p.Parse()
}
