package query

import (
	"fmt"
	"slices"

	"github.com/steveyegge/weft/internal/gate"
	"github.com/steveyegge/weft/internal/graph"
	"github.com/steveyegge/weft/internal/types"
)

// Context is the evaluation environment: the full issue collection and the
// gate definitions. The blocked predicate needs both.
type Context struct {
	issues []*types.Issue
	graph  *graph.Graph
	gates  map[string]*types.Gate
}

// NewContext builds an evaluation context over a snapshot.
func NewContext(issues []*types.Issue, gates map[string]*types.Gate) *Context {
	if gates == nil {
		gates = map[string]*types.Gate{}
	}
	return &Context{issues: issues, graph: graph.New(issues), gates: gates}
}

// Issues returns the collection the context was built from.
func (c *Context) Issues() []*types.Issue {
	return c.issues
}

// Blocked reports whether a non-terminal issue has an unmet (not Done,
// missing or rejected) dependency or an unsatisfied precheck gate.
func (c *Context) Blocked(issue *types.Issue) bool {
	if issue.State.IsTerminal() {
		return false
	}
	if len(c.graph.UnmetDependencies(issue.ID)) > 0 {
		return true
	}
	return !gate.PrecheckSatisfied(issue, c.gates)
}

// Evaluate reports whether issue matches node.
func Evaluate(node Node, issue *types.Issue, ctx *Context) bool {
	switch n := node.(type) {
	case *StateNode:
		return issue.State == n.State
	case *PriorityNode:
		return issue.Priority == n.Priority
	case *LabelNode:
		if n.Value == "" {
			return len(issue.LabelsInNamespace(n.Namespace)) > 0
		}
		return slices.Contains(issue.LabelsInNamespace(n.Namespace), n.Value)
	case *AssigneeNode:
		return issue.Assignee == n.Assignee
	case *UnassignedNode:
		return issue.Assignee == ""
	case *BlockedNode:
		return ctx.Blocked(issue)
	case *AndNode:
		return Evaluate(n.Left, issue, ctx) && Evaluate(n.Right, issue, ctx)
	case *OrNode:
		return Evaluate(n.Left, issue, ctx) || Evaluate(n.Right, issue, ctx)
	case *NotNode:
		return !Evaluate(n.Operand, issue, ctx)
	default:
		panic(fmt.Sprintf("query: unknown node %T", node))
	}
}

// Filter returns the context issues matching node, in collection order.
func (c *Context) Filter(node Node) []*types.Issue {
	var out []*types.Issue
	for _, issue := range c.issues {
		if Evaluate(node, issue, c) {
			out = append(out, issue)
		}
	}
	return out
}

// Run parses expr and filters the context issues with it.
func (c *Context) Run(expr string) ([]*types.Issue, error) {
	node, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	return c.Filter(node), nil
}
