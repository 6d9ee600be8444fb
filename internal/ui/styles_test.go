package ui

import (
	"strings"
	"testing"

	"github.com/steveyegge/weft/internal/types"
)

func TestStateIconASCII(t *testing.T) {
	t.Setenv("WEFT_NO_EMOJI", "1")

	seen := make(map[string]types.State)
	for _, s := range []types.State{
		types.StateBacklog, types.StateReady, types.StateInProgress,
		types.StateGated, types.StateDone, types.StateRejected,
	} {
		icon := StateIcon(s)
		if len(icon) != 1 {
			t.Errorf("StateIcon(%s) = %q, want a single ASCII character", s, icon)
		}
		if prev, dup := seen[icon]; dup {
			t.Errorf("StateIcon(%s) = %q, same as %s", s, icon, prev)
		}
		seen[icon] = s
	}
	if got := StateIcon(types.State("bogus")); got != "?" {
		t.Errorf("StateIcon(bogus) = %q, want ?", got)
	}
}

func TestRenderKeepsText(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"state", RenderState(types.StateReady, "wf-1"), "wf-1"},
		{"critical", RenderPriority(types.PriorityCritical), "critical"},
		{"normal", RenderPriority(types.PriorityNormal), "normal"},
		{"passed", RenderGateStatus(types.GatePassed), "passed"},
		{"pending", RenderGateStatus(types.GatePending), "pending"},
		{"category", RenderCategory("gates"), "GATES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !strings.Contains(tt.got, tt.want) {
				t.Errorf("rendered %q does not contain %q", tt.got, tt.want)
			}
		})
	}
}
