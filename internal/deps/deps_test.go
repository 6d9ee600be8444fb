package deps

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/weft/internal/graph"
	"github.com/steveyegge/weft/internal/types"
)

// diamond: a -> b, a -> c, b -> d, c -> d, c -> gone (deleted)
func diamond() *graph.Graph {
	return graph.New([]*types.Issue{
		{ID: "wf-a", Title: "A", State: types.StateBacklog, Dependencies: []string{"wf-c", "wf-b"}},
		{ID: "wf-b", Title: "B", State: types.StateBacklog, Dependencies: []string{"wf-d"}},
		{ID: "wf-c", Title: "C", State: types.StateBacklog, Dependencies: []string{"wf-d", "wf-gone"}},
		{ID: "wf-d", Title: "D", State: types.StateReady, Priority: types.PriorityHigh},
	})
}

func ids(tree []*TreeNode) []string {
	out := make([]string, len(tree))
	for i, n := range tree {
		out[i] = strings.Repeat(" ", n.Depth) + n.ID
	}
	return out
}

func TestBuildTree(t *testing.T) {
	g := diamond()

	t.Run("down", func(t *testing.T) {
		tree, err := BuildTree(g, "wf-a", Down, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"wf-a",
			" wf-b",
			"  wf-d",
			" wf-c",
			"  wf-d",
			"  wf-gone",
		}, ids(tree))
		assert.True(t, tree[5].Missing)
		assert.Equal(t, types.PriorityHigh, tree[2].Priority)
	})

	t.Run("up", func(t *testing.T) {
		tree, err := BuildTree(g, "wf-d", Up, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"wf-d",
			" wf-b",
			"  wf-a",
			" wf-c",
			"  wf-a",
		}, ids(tree))
	})

	t.Run("max depth", func(t *testing.T) {
		tree, err := BuildTree(g, "wf-a", Down, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"wf-a", " wf-b", " wf-c"}, ids(tree))
		assert.True(t, tree[1].Truncated)
		assert.True(t, tree[2].Truncated)
	})

	t.Run("unknown root", func(t *testing.T) {
		_, err := BuildTree(g, "wf-zz", Down, 0)
		assert.True(t, errors.Is(err, types.ErrNotFound))
	})
}

func TestBuildTreeSurvivesCycles(t *testing.T) {
	g := graph.New([]*types.Issue{
		{ID: "x", Dependencies: []string{"y"}},
		{ID: "y", Dependencies: []string{"x"}},
	})
	tree, err := BuildTree(g, "x", Down, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", " y", "  x"}, ids(tree))
}

func TestFilterTreeByState(t *testing.T) {
	tree, err := BuildTree(diamond(), "wf-a", Down, 0)
	require.NoError(t, err)

	ready := FilterTreeByState(tree, types.StateReady)
	assert.Equal(t, []string{"wf-a", " wf-b", "  wf-d", " wf-c", "  wf-d"}, ids(ready))

	assert.Empty(t, FilterTreeByState(tree, types.StateDone))
}

func TestRenderTree(t *testing.T) {
	tree, err := BuildTree(diamond(), "wf-a", Down, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	NewTreeRenderer().RenderTree(&buf, tree)

	want := strings.Join([]string{
		"wf-a: A [low] (backlog)",
		"├── wf-b: B [low] (backlog)",
		"│   └── wf-d: D [high] (ready) [READY]",
		"└── wf-c: C [low] (backlog)",
		"    ├── wf-d (shown above)",
		"    └── wf-gone (missing)",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteMermaid(t *testing.T) {
	tree, err := BuildTree(diamond(), "wf-a", Down, 0)
	require.NoError(t, err)

	var buf bytes.Buffer
	WriteMermaid(&buf, tree, "wf-a")
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "flowchart TD\n"))
	assert.Contains(t, out, `wf_d["☐ wf-d: D"]`)
	assert.Contains(t, out, `wf_gone["wf-gone (missing)"]`)
	assert.Contains(t, out, "wf_a --> wf_b")
	assert.Contains(t, out, "wf_c --> wf_d")
	assert.Equal(t, 1, strings.Count(out, `wf_d["`))

	buf.Reset()
	WriteMermaid(&buf, []*TreeNode{{ID: "wf-x.1"}}, "wf-x.1")
	assert.Equal(t, "flowchart TD\n  wf_x_1[\"No dependencies\"]\n", buf.String())
}

func TestIsChildOf(t *testing.T) {
	tests := []struct {
		child, parent string
		want          bool
	}{
		{"wf-abc.1", "wf-abc", true},
		{"wf-abc.1.2", "wf-abc", true},
		{"wf-abc.1.2", "wf-abc.1", true},
		{"wf-abc", "wf-abc", false},
		{"wf-abcd.1", "wf-abc", false},
		{"wf-abc", "wf-abc.1", false},
	}
	for _, tt := range tests {
		if got := IsChildOf(tt.child, tt.parent); got != tt.want {
			t.Errorf("IsChildOf(%q, %q) = %v, want %v", tt.child, tt.parent, got, tt.want)
		}
	}
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"": Down, "down": Down, "UP": Up} {
		got, err := ParseDirection(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseDirection("sideways")
	assert.Error(t, err)
}
