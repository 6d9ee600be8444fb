// Package deps renders dependency trees for the weft CLI: text trees with
// box-drawing connectors and Mermaid.js flowcharts.
package deps

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/steveyegge/weft/internal/graph"
	"github.com/steveyegge/weft/internal/types"
)

// Direction selects which edges a tree follows.
type Direction string

const (
	// Down follows dependencies: what the root waits on.
	Down Direction = "down"
	// Up follows dependents: what waits on the root.
	Up Direction = "up"
)

// ParseDirection accepts "down", "up" or "" (down).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "down":
		return Down, nil
	case "up":
		return Up, nil
	}
	return "", fmt.Errorf("invalid direction %q (want down or up)", s)
}

// TreeNode is one line of a rendered tree.
type TreeNode struct {
	ID       string         `json:"id"`
	Title    string         `json:"title,omitempty"`
	State    types.State    `json:"state,omitempty"`
	Priority types.Priority `json:"priority"`
	Depth    int            `json:"depth"`
	ParentID string         `json:"parent_id,omitempty"`
	// Missing marks a dependency on a deleted issue.
	Missing bool `json:"missing,omitempty"`
	// Truncated marks a node whose children were cut off by maxDepth.
	Truncated bool `json:"truncated,omitempty"`
}

// IsChildOf returns true if childID is a hierarchical breakdown child of
// parentID. For example, "wf-abc.1" and "wf-abc.1.2" are children of "wf-abc".
func IsChildOf(childID, parentID string) bool {
	return childID != parentID && strings.HasPrefix(childID, parentID+".")
}

// BuildTree walks g from rootID in direction dir, depth first, children
// sorted by ID. A node reachable along several paths is listed under each
// parent but expanded only once. maxDepth <= 0 means unlimited.
func BuildTree(g *graph.Graph, rootID string, dir Direction, maxDepth int) ([]*TreeNode, error) {
	if !g.Has(rootID) {
		return nil, fmt.Errorf("issue %s: %w", rootID, types.ErrNotFound)
	}

	next := func(id string) []string {
		if dir == Up {
			return g.Dependents(id)
		}
		deps := g.Dependencies(id)
		sort.Strings(deps)
		return deps
	}

	var tree []*TreeNode
	expanded := make(map[string]bool)
	var walk func(id, parent string, depth int)
	walk = func(id, parent string, depth int) {
		node := &TreeNode{ID: id, Depth: depth, ParentID: parent}
		if issue := g.Issue(id); issue != nil {
			node.Title = issue.Title
			node.State = issue.State
			node.Priority = issue.Priority
		} else {
			node.Missing = true
		}
		tree = append(tree, node)

		if expanded[id] {
			return
		}
		expanded[id] = true
		children := next(id)
		if maxDepth > 0 && depth >= maxDepth {
			node.Truncated = len(children) > 0
			return
		}
		for _, child := range children {
			walk(child, id, depth+1)
		}
	}
	walk(rootID, "", 0)
	return tree, nil
}

// FilterTreeByState filters the tree to only include nodes with the given
// state. Keeps the parent chain to maintain tree structure.
func FilterTreeByState(tree []*TreeNode, state types.State) []*TreeNode {
	if len(tree) == 0 {
		return tree
	}

	// Positions let a repeated ID resolve to the right parent line.
	parentIdx := make([]int, len(tree))
	lastAt := make(map[int]int) // depth -> index of the latest node at that depth
	for i, node := range tree {
		parentIdx[i] = -1
		if node.Depth > 0 {
			if p, ok := lastAt[node.Depth-1]; ok {
				parentIdx[i] = p
			}
		}
		lastAt[node.Depth] = i
	}

	keep := make([]bool, len(tree))
	matched := false
	for i, node := range tree {
		if node.State != state {
			continue
		}
		matched = true
		for j := i; j >= 0 && !keep[j]; j = parentIdx[j] {
			keep[j] = true
		}
	}
	if !matched {
		return []*TreeNode{}
	}

	var filtered []*TreeNode
	for i, node := range tree {
		if keep[i] {
			filtered = append(filtered, node)
		}
	}
	return filtered
}

// StateSymbol returns a symbol indicator for a given state, used in Mermaid
// labels where styling is unavailable.
func StateSymbol(state types.State) string {
	switch state {
	case types.StateBacklog:
		return "○" // White Circle
	case types.StateReady:
		return "☐" // Ballot Box
	case types.StateInProgress:
		return "◧" // Square Left Half Black
	case types.StateGated:
		return "⧗" // Black Hourglass
	case types.StateDone:
		return "☑" // Ballot Box with Check
	case types.StateRejected:
		return "☒" // Ballot Box with X
	default:
		return "?"
	}
}

// WriteMermaid writes a dependency tree in Mermaid.js flowchart format.
// Edges point from a node to its children in the tree.
func WriteMermaid(w io.Writer, tree []*TreeNode, rootID string) {
	fmt.Fprintln(w, "flowchart TD")
	if len(tree) <= 1 {
		fmt.Fprintf(w, "  %s[\"No dependencies\"]\n", mermaidID(rootID))
		return
	}

	nodesSeen := make(map[string]bool)
	for _, node := range tree {
		if nodesSeen[node.ID] {
			continue
		}
		nodesSeen[node.ID] = true
		label := fmt.Sprintf("%s %s: %s", StateSymbol(node.State), node.ID, node.Title)
		if node.Missing {
			label = node.ID + " (missing)"
		}
		label = strings.ReplaceAll(label, "\\", "\\\\")
		label = strings.ReplaceAll(label, "\"", "\\\"")
		fmt.Fprintf(w, "  %s[\"%s\"]\n", mermaidID(node.ID), label)
	}

	fmt.Fprintln(w)

	for _, node := range tree {
		if node.ParentID != "" {
			fmt.Fprintf(w, "  %s --> %s\n", mermaidID(node.ParentID), mermaidID(node.ID))
		}
	}
}

// mermaidID makes an issue ID safe as a Mermaid node identifier; dots in
// child IDs would otherwise be parsed as syntax.
func mermaidID(id string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(id)
}

// FormatTreeNode formats a single tree node: styled ID, title, priority and
// state, with a [READY] badge on ready nodes.
func FormatTreeNode(node *TreeNode, styleFunc func(types.State, string) string, passStyleBold func(string) string) string {
	if node.Missing {
		return styleFunc(types.StateRejected, node.ID) + " (missing)"
	}

	line := fmt.Sprintf("%s: %s [%s] (%s)",
		styleFunc(node.State, node.ID), node.Title, node.Priority, node.State)

	if node.State == types.StateReady {
		line += " " + passStyleBold("[READY]")
	}
	return line
}

// TreeRenderer holds state for rendering a tree with proper connectors.
type TreeRenderer struct {
	seen             map[string]bool
	activeConnectors []bool
	// Styling callbacks. Nil callbacks render plain text.
	MutedFunc     func(string) string
	WarnFunc      func(string) string
	StyleFunc     func(types.State, string) string
	PassStyleBold func(string) string
}

// NewTreeRenderer creates a new tree renderer.
func NewTreeRenderer() *TreeRenderer {
	plain := func(s string) string { return s }
	return &TreeRenderer{
		seen:          make(map[string]bool),
		MutedFunc:     plain,
		WarnFunc:      plain,
		StyleFunc:     func(_ types.State, s string) string { return s },
		PassStyleBold: plain,
	}
}

// RenderTree writes the tree with box-drawing connectors.
func (r *TreeRenderer) RenderTree(w io.Writer, tree []*TreeNode) {
	if len(tree) == 0 {
		return
	}

	children := make(map[int][]int)
	var stack []int // index of the latest node at each depth
	for i, node := range tree {
		if node.Depth == 0 {
			stack = stack[:0]
		} else if node.Depth <= len(stack) {
			parent := stack[node.Depth-1]
			children[parent] = append(children[parent], i)
		}
		stack = append(stack[:min(node.Depth, len(stack))], i)
	}

	r.activeConnectors = make([]bool, maxDepth(tree)+1)
	r.renderNode(w, tree, children, 0, 0, true)
}

func maxDepth(tree []*TreeNode) int {
	m := 0
	for _, n := range tree {
		m = max(m, n.Depth)
	}
	return m
}

func (r *TreeRenderer) renderNode(w io.Writer, tree []*TreeNode, children map[int][]int, idx, depth int, isLast bool) {
	node := tree[idx]

	var prefix strings.Builder
	for i := 1; i < depth; i++ {
		if r.activeConnectors[i] {
			prefix.WriteString("│   ") // │
		} else {
			prefix.WriteString("    ")
		}
	}
	if depth > 0 {
		if isLast {
			prefix.WriteString("└── ") // └──
		} else {
			prefix.WriteString("├── ") // ├──
		}
	}

	if r.seen[node.ID] {
		fmt.Fprintf(w, "%s%s\n", prefix.String(), r.MutedFunc(node.ID+" (shown above)"))
		return
	}
	r.seen[node.ID] = true

	line := FormatTreeNode(node, r.StyleFunc, r.PassStyleBold)
	if node.Truncated {
		line += r.WarnFunc(" …") // …
	}
	fmt.Fprintf(w, "%s%s\n", prefix.String(), line)

	kids := children[idx]
	for i, child := range kids {
		last := i == len(kids)-1
		r.activeConnectors[depth+1] = !last
		r.renderNode(w, tree, children, child, depth+1, last)
	}
}
