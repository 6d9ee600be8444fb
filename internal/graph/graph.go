// Package graph provides the dependency graph engine: reachability, cycle
// detection and transitive reduction over a snapshot of issues.
//
// A Graph is derived data. It is rebuilt from the current snapshot for every
// operation and never persisted. Nodes are indexed by ID and edges are ID
// lists, so no issue holds a pointer to another.
package graph

import (
	"fmt"
	"slices"
	"sort"

	"github.com/steveyegge/weft/internal/types"
)

// Graph is a directed graph where an edge a -> b means "a depends on b".
type Graph struct {
	nodes map[string]*types.Issue
	// edges maps issue ID to the IDs it depends on, in persisted order.
	// Entries may name issues that no longer exist (deletes do not cascade).
	edges map[string][]string
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New builds a graph from a snapshot of issues. The issues are not copied;
// the graph only reads them.
func New(issues []*types.Issue) *Graph {
	g := &Graph{
		nodes:    make(map[string]*types.Issue, len(issues)),
		edges:    make(map[string][]string, len(issues)),
		debugLog: func(format string, args ...interface{}) {},
	}
	for _, issue := range issues {
		g.nodes[issue.ID] = issue
		g.edges[issue.ID] = slices.Clone(issue.Dependencies)
	}
	return g
}

// SetDebugLog sets the debug logging function.
func (g *Graph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Has reports whether id is a live issue in the snapshot.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Issue returns the snapshot issue for id, or nil when missing.
func (g *Graph) Issue(id string) *types.Issue {
	return g.nodes[id]
}

// Size returns the number of live issues.
func (g *Graph) Size() int {
	return len(g.nodes)
}

// Dependencies returns the direct dependency IDs of id, including missing ones.
func (g *Graph) Dependencies(id string) []string {
	return slices.Clone(g.edges[id])
}

// Missing returns the direct dependencies of id that do not resolve to a live issue.
func (g *Graph) Missing(id string) []string {
	var missing []string
	for _, dep := range g.edges[id] {
		if !g.Has(dep) {
			missing = append(missing, dep)
		}
	}
	return missing
}

// UnmetDependencies returns the direct dependencies of id that are not Done,
// in dependency order. Missing and Rejected dependencies are unmet.
func (g *Graph) UnmetDependencies(id string) []string {
	var unmet []string
	for _, dep := range g.edges[id] {
		if n, ok := g.nodes[dep]; !ok || n.State != types.StateDone {
			unmet = append(unmet, dep)
		}
	}
	return unmet
}

// Dependents returns the IDs that depend directly on id, sorted.
func (g *Graph) Dependents(id string) []string {
	var out []string
	for from, deps := range g.edges {
		if slices.Contains(deps, id) {
			out = append(out, from)
		}
	}
	sort.Strings(out)
	return out
}

// SetDependencies replaces the edge set of id in this graph only. Callers use
// it to reason about a prospective state before persisting it.
func (g *Graph) SetDependencies(id string, deps []string) {
	g.edges[id] = slices.Clone(deps)
}

// edge identifies one direct dependency to ignore during a reachability search.
type edge struct {
	from, to string
}

// reachable reports whether to can be reached from from by following
// dependency edges, never using the edge skip. It is the single reachability
// definition shared by cycle validation and transitive reduction.
// Missing nodes have no outgoing edges. The visited set makes it terminate on
// hand-edited data that already contains a cycle.
func (g *Graph) reachable(from, to string, skip edge) bool {
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.edges[cur] {
			if cur == skip.from && next == skip.to {
				continue
			}
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false
}

// Reachable reports whether from transitively depends on to.
func (g *Graph) Reachable(from, to string) bool {
	return g.reachable(from, to, edge{})
}

// ValidateAddDependency checks that the edge from -> to may be added.
// It fails with ErrNotFound when either end is missing, and with
// ErrCycleDetected when from == to or when from is already reachable from to,
// since the new edge would close the loop.
func (g *Graph) ValidateAddDependency(from, to string) error {
	if from == to {
		return fmt.Errorf("%s -> %s: %w: %w", from, to, types.ErrCycleDetected, types.ErrSelfDependency)
	}
	if !g.Has(from) {
		return fmt.Errorf("issue %s: %w", from, types.ErrNotFound)
	}
	if !g.Has(to) {
		return fmt.Errorf("dependency %s: %w", to, types.ErrNotFound)
	}
	if g.Reachable(to, from) {
		g.debugLog("[graph] rejecting %s -> %s: %s already reaches %s", from, to, to, from)
		return fmt.Errorf("adding %s -> %s would create a cycle: %w", from, to, types.ErrCycleDetected)
	}
	return nil
}

// IsTransitive reports whether to is reachable from from through a path that
// does not use the direct edge from -> to.
func (g *Graph) IsTransitive(from, to string) bool {
	return g.reachable(from, to, edge{from: from, to: to})
}

// TransitiveReduction returns the minimal dependency set of id: every edge
// whose target stays reachable through the remaining edges is dropped.
// Edges are examined in order and removed as they are found redundant, so the
// check always runs against the remaining set. The graph is not modified.
func (g *Graph) TransitiveReduction(id string) []string {
	original := g.edges[id]
	defer func() { g.edges[id] = original }()

	kept := slices.Clone(original)
	for _, dep := range original {
		g.edges[id] = kept
		if g.reachable(id, dep, edge{from: id, to: dep}) {
			g.debugLog("[graph] %s -> %s is implied by another path", id, dep)
			kept = slices.DeleteFunc(kept, func(d string) bool { return d == dep })
		}
	}
	return kept
}

// ReduceFrom applies transitive reduction to id and to every issue that
// transitively depends on it: after an edge out of id is added, those are the
// only sets that can become redundant. The graph is updated and the pruned
// edges are returned keyed by issue ID.
func (g *Graph) ReduceFrom(id string) map[string][]string {
	pruned := make(map[string][]string)
	for _, node := range append([]string{id}, g.Downstream(id)...) {
		reduced := g.TransitiveReduction(node)
		if len(reduced) == len(g.edges[node]) {
			continue
		}
		for _, dep := range g.edges[node] {
			if !slices.Contains(reduced, dep) {
				pruned[node] = append(pruned[node], dep)
			}
		}
		g.edges[node] = reduced
	}
	return pruned
}

// IsReduced reports whether the dependency set of id is transitively reduced.
func (g *Graph) IsReduced(id string) bool {
	for _, dep := range g.edges[id] {
		if g.IsTransitive(id, dep) {
			return false
		}
	}
	return true
}

// Downstream returns every issue that transitively depends on id, sorted.
func (g *Graph) Downstream(id string) []string {
	reverse := g.reverseEdges()
	visited := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, from := range reverse[cur] {
			if !visited[from] {
				visited[from] = true
				out = append(out, from)
				queue = append(queue, from)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Upstream returns every issue id transitively depends on, sorted. Missing
// dependencies are included.
func (g *Graph) Upstream(id string) []string {
	visited := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range g.edges[cur] {
			if !visited[dep] {
				visited[dep] = true
				out = append(out, dep)
				queue = append(queue, dep)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Roots returns the live issues that have no dependencies, sorted.
func (g *Graph) Roots() []string {
	var roots []string
	for id := range g.nodes {
		if len(g.edges[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

func (g *Graph) reverseEdges() map[string][]string {
	reverse := make(map[string][]string)
	for from, deps := range g.edges {
		for _, to := range deps {
			reverse[to] = append(reverse[to], from)
		}
	}
	for _, froms := range reverse {
		sort.Strings(froms)
	}
	return reverse
}

// DetectCycles finds cycles in the snapshot. Validated writes never create
// one, so a non-empty result means the files were edited by hand or merged.
// Each cycle is reported once, starting from its smallest ID.
func (g *Graph) DetectCycles() [][]string {
	ids := make([]string, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var cycles [][]string
	seen := make(map[string]bool)
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	var path []string

	var dfs func(node string)
	dfs = func(node string) {
		visited[node] = true
		recStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				dfs(neighbor)
			} else if recStack[neighbor] {
				start := slices.Index(path, neighbor)
				cycle := canonicalCycle(path[start:])
				key := fmt.Sprint(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}

		path = path[:len(path)-1]
		recStack[node] = false
	}

	for _, id := range ids {
		if !visited[id] {
			dfs(id)
		}
	}
	return cycles
}

// canonicalCycle rotates a cycle so it starts at its smallest ID.
func canonicalCycle(cycle []string) []string {
	minIdx := 0
	for i, id := range cycle {
		if id < cycle[minIdx] {
			minIdx = i
		}
	}
	out := make([]string, 0, len(cycle))
	out = append(out, cycle[minIdx:]...)
	out = append(out, cycle[:minIdx]...)
	return out
}

// TopologicalOrder returns live issue IDs with every dependency before its
// dependents. Ties are broken by ID. It fails with ErrCycleDetected on cyclic data.
func (g *Graph) TopologicalOrder() ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	for id := range g.nodes {
		for _, dep := range g.edges[id] {
			if g.Has(dep) {
				indegree[id]++
			}
		}
	}
	reverse := g.reverseEdges()

	var ready []string
	for id := range g.nodes {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		cur := ready[0]
		ready = ready[1:]
		order = append(order, cur)
		var unlocked []string
		for _, from := range reverse[cur] {
			if !g.Has(from) {
				continue
			}
			indegree[from]--
			if indegree[from] == 0 {
				unlocked = append(unlocked, from)
			}
		}
		ready = append(ready, unlocked...)
		sort.Strings(ready)
	}
	if len(order) != len(g.nodes) {
		return nil, fmt.Errorf("topological order: %w", types.ErrCycleDetected)
	}
	return order, nil
}
