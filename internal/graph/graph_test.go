package graph

import (
	"errors"
	"reflect"
	"testing"

	"github.com/steveyegge/weft/internal/types"
)

// build creates issues from an adjacency map: id -> dependencies.
func build(adj map[string][]string) *Graph {
	var issues []*types.Issue
	for id, deps := range adj {
		issues = append(issues, &types.Issue{ID: id, Dependencies: deps})
	}
	return New(issues)
}

func TestValidateAddDependency(t *testing.T) {
	// a -> b -> c
	g := build(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": nil,
		"d": nil,
	})

	tests := []struct {
		name     string
		from, to string
		wantErr  error
	}{
		{"independent edge", "d", "a", nil},
		{"forward shortcut", "a", "c", nil},
		{"closes two-cycle", "b", "a", types.ErrCycleDetected},
		{"closes long cycle", "c", "a", types.ErrCycleDetected},
		{"self", "a", "a", types.ErrSelfDependency},
		{"missing target", "a", "zz", types.ErrNotFound},
		{"missing source", "zz", "a", types.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.ValidateAddDependency(tt.from, tt.to)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := g.ValidateAddDependency("a", "a"); !errors.Is(err, types.ErrCycleDetected) {
		t.Errorf("self dependency should also be a cycle, got %v", err)
	}
}

func TestIsTransitive(t *testing.T) {
	// a -> b -> c, a -> c (redundant)
	g := build(map[string][]string{
		"a": {"b", "c"},
		"b": {"c"},
		"c": nil,
	})
	if !g.IsTransitive("a", "c") {
		t.Error("a -> c should be transitive via b")
	}
	if g.IsTransitive("a", "b") {
		t.Error("a -> b is the only path to b")
	}
	if g.IsTransitive("c", "a") {
		t.Error("c does not reach a")
	}
}

func TestTransitiveReduction(t *testing.T) {
	tests := []struct {
		name string
		adj  map[string][]string
		node string
		want []string
	}{
		{
			name: "drops shortcut",
			adj:  map[string][]string{"a": {"c", "b"}, "b": {"c"}, "c": nil},
			node: "a",
			want: []string{"b"},
		},
		{
			name: "keeps independent deps in order",
			adj:  map[string][]string{"a": {"c", "b"}, "b": nil, "c": nil},
			node: "a",
			want: []string{"c", "b"},
		},
		{
			name: "drops deep shortcut",
			adj:  map[string][]string{"a": {"b", "d"}, "b": {"c"}, "c": {"d"}, "d": nil},
			node: "a",
			want: []string{"b"},
		},
		{
			name: "keeps missing reference",
			adj:  map[string][]string{"a": {"gone", "b"}, "b": nil},
			node: "a",
			want: []string{"gone", "b"},
		},
		{
			name: "diamond keeps both branches",
			adj:  map[string][]string{"a": {"b", "c", "d"}, "b": {"d"}, "c": {"d"}, "d": nil},
			node: "a",
			want: []string{"b", "c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := build(tt.adj)
			got := g.TransitiveReduction(tt.node)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("TransitiveReduction(%s) = %v, want %v", tt.node, got, tt.want)
			}
			// The graph itself is unchanged.
			if !reflect.DeepEqual(g.Dependencies(tt.node), tt.adj[tt.node]) {
				t.Errorf("graph mutated: %v", g.Dependencies(tt.node))
			}
		})
	}
}

func TestReduceFromPrunesUpstreamSets(t *testing.T) {
	// x depends on both p and q. Adding p -> q makes x -> q redundant.
	g := build(map[string][]string{
		"x": {"p", "q"},
		"p": {"q"},
		"q": nil,
	})
	pruned := g.ReduceFrom("p")
	if !reflect.DeepEqual(pruned, map[string][]string{"x": {"q"}}) {
		t.Fatalf("pruned = %v", pruned)
	}
	if got := g.Dependencies("x"); !reflect.DeepEqual(got, []string{"p"}) {
		t.Fatalf("x deps = %v", got)
	}
	for _, id := range []string{"x", "p", "q"} {
		if !g.IsReduced(id) {
			t.Errorf("%s not reduced", id)
		}
	}
}

func TestDownstreamAndRoots(t *testing.T) {
	g := build(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": nil,
		"d": {"c"},
		"e": nil,
	})
	if got := g.Downstream("c"); !reflect.DeepEqual(got, []string{"a", "b", "d"}) {
		t.Errorf("Downstream(c) = %v", got)
	}
	if got := g.Downstream("a"); len(got) != 0 {
		t.Errorf("Downstream(a) = %v", got)
	}
	if got := g.Upstream("a"); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("Upstream(a) = %v", got)
	}
	if got := g.Roots(); !reflect.DeepEqual(got, []string{"c", "e"}) {
		t.Errorf("Roots() = %v", got)
	}
	if got := g.Dependents("c"); !reflect.DeepEqual(got, []string{"b", "d"}) {
		t.Errorf("Dependents(c) = %v", got)
	}
}

func TestMissingDependencies(t *testing.T) {
	g := build(map[string][]string{"a": {"b", "deleted"}, "b": nil})
	if got := g.Missing("a"); !reflect.DeepEqual(got, []string{"deleted"}) {
		t.Errorf("Missing(a) = %v", got)
	}
	if g.Has("deleted") {
		t.Error("deleted issue should not be a node")
	}
}

func TestDetectCycles(t *testing.T) {
	g := build(map[string][]string{
		"a": {"b"},
		"b": {"c"},
		"c": {"a"},
		"d": {"d"},
		"e": nil,
	})
	cycles := g.DetectCycles()
	want := [][]string{{"a", "b", "c"}, {"d"}}
	if !reflect.DeepEqual(cycles, want) {
		t.Fatalf("DetectCycles() = %v, want %v", cycles, want)
	}

	if _, err := g.TopologicalOrder(); !errors.Is(err, types.ErrCycleDetected) {
		t.Errorf("TopologicalOrder on cyclic data: %v", err)
	}
}

func TestTopologicalOrder(t *testing.T) {
	g := build(map[string][]string{
		"a": {"b", "c"},
		"b": {"d"},
		"c": {"d"},
		"d": nil,
	})
	order, err := g.TopologicalOrder()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(order, []string{"d", "b", "c", "a"}) {
		t.Fatalf("order = %v", order)
	}
}

func TestReachableTerminatesOnCycles(t *testing.T) {
	g := build(map[string][]string{"a": {"b"}, "b": {"a"}, "c": nil})
	if g.Reachable("a", "c") {
		t.Error("c is not reachable")
	}
}

func TestUnmetDependencies(t *testing.T) {
	g := New([]*types.Issue{
		{ID: "a", Dependencies: []string{"b", "c", "d", "gone"}},
		{ID: "b", State: types.StateDone},
		{ID: "c", State: types.StateInProgress},
		{ID: "d", State: types.StateRejected},
	})
	if got := g.UnmetDependencies("a"); !reflect.DeepEqual(got, []string{"c", "d", "gone"}) {
		t.Errorf("UnmetDependencies(a) = %v", got)
	}
	if got := g.UnmetDependencies("b"); got != nil {
		t.Errorf("UnmetDependencies(b) = %v", got)
	}
}
