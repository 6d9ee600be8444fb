package query

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/weft/internal/types"
)

func TestTokenize(t *testing.T) {
	toks, err := Tokenize(`(state:ready and NOT label:area:*) Or assignee:"Ada L"`)
	require.NoError(t, err)

	var got []TokenType
	for _, tok := range toks {
		got = append(got, tok.Type)
	}
	assert.Equal(t, []TokenType{
		TokenLParen, TokenTerm, TokenAnd, TokenNot, TokenTerm, TokenRParen,
		TokenOr, TokenTerm, TokenEOF,
	}, got)
	assert.Equal(t, "assignee:Ada L", toks[7].Value)
	assert.Equal(t, 1, toks[1].Pos)
}

func TestParsePrecedence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"state:ready", "state:ready"},
		{"a:b", ""},
		{"state:ready OR state:backlog AND unassigned", "(state:ready OR (state:backlog AND unassigned))"},
		{"NOT blocked AND unassigned", "(NOT blocked AND unassigned)"},
		{"NOT NOT blocked", "NOT NOT blocked"},
		{"(state:ready OR state:gated) AND priority:p0", "((state:ready OR state:gated) AND priority:critical)"},
		{"priority:h OR priority:l OR priority:n", "((priority:high OR priority:low) OR priority:normal)"},
		{"label:area:* and label:kind:ux", "(label:area:* AND label:kind:ux)"},
		{"STATE:In-Progress", "state:in_progress"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			node, err := Parse(tt.in)
			if tt.want == "" {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, node.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		in        string
		wantToken string
		wantPos   int
	}{
		{"", "", 0},
		{"   ", "", 3},
		{"state:ready AND", "", 15},
		{"state:sleeping", "state:sleeping", 0},
		{"priority:urgent", "priority:urgent", 0},
		{"colour:red", "colour:red", 0},
		{"unassigned blocked", "blocked", 11},
		{"(state:ready", "(", 0},
		{"state:ready)", ")", 11},
		{"label:area", "label:area", 0},
		{"AND state:ready", "AND", 0},
		{`assignee:"open`, `"open`, 9},
		{"state:", "state:", 0},
		{"wibble", "wibble", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := Parse(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrQuerySyntax))
			assert.Equal(t, "QUERY_SYNTAX", types.ErrorCode(err))

			var qe *QuerySyntaxError
			require.True(t, errors.As(err, &qe))
			assert.Equal(t, tt.wantToken, qe.Token)
			assert.Equal(t, tt.wantPos, qe.Pos)
		})
	}
}

func fixture() *Context {
	issues := []*types.Issue{
		{ID: "wf-a", State: types.StateReady, Priority: types.PriorityHigh, Labels: []string{"area:api"}},
		{ID: "wf-b", State: types.StateBacklog, Priority: types.PriorityLow, Dependencies: []string{"wf-a"}},
		{ID: "wf-c", State: types.StateInProgress, Priority: types.PriorityHigh, Assignee: "alice", Labels: []string{"area:cli", "kind:ux"}},
		{ID: "wf-d", State: types.StateBacklog, RequiredGates: []string{"design"}, GateStatus: map[string]types.GateStatus{"design": types.GatePending}},
		{ID: "wf-e", State: types.StateBacklog, Dependencies: []string{"wf-deleted"}},
		{ID: "wf-f", State: types.StateDone, Dependencies: []string{"wf-a"}},
	}
	gates := map[string]*types.Gate{
		"design": {Key: "design", Stage: types.StagePrecheck, Mode: types.GateModeManual, Checker: types.ManualChecker{}},
	}
	return NewContext(issues, gates)
}

func ids(issues []*types.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.ID)
	}
	return out
}

func TestRun(t *testing.T) {
	ctx := fixture()
	tests := []struct {
		expr string
		want []string
	}{
		{"state:ready", []string{"wf-a"}},
		{"priority:high", []string{"wf-a", "wf-c"}},
		{"unassigned AND priority:high", []string{"wf-a"}},
		{"assignee:alice", []string{"wf-c"}},
		{"label:area:*", []string{"wf-a", "wf-c"}},
		{"label:area:cli", []string{"wf-c"}},
		{"label:area:* AND NOT label:area:api", []string{"wf-c"}},
		{"blocked", []string{"wf-b", "wf-d", "wf-e"}},
		{"NOT blocked AND state:backlog", nil},
		{"state:done OR state:ready", []string{"wf-a", "wf-f"}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ctx.Run(tt.expr)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestBlockedCountsMissingDependency(t *testing.T) {
	ctx := fixture()
	var e *types.Issue
	for _, i := range ctx.Issues() {
		if i.ID == "wf-e" {
			e = i
		}
	}
	require.NotNil(t, e)
	assert.True(t, ctx.Blocked(e), "dangling dependency must block")
}
