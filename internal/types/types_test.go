package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestIssueValidation(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		issue   Issue
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid issue",
			issue: Issue{
				ID:        "wf-1",
				Title:     "Valid issue",
				State:     StateBacklog,
				Priority:  PriorityNormal,
				IssueType: TypeFeature,
			},
		},
		{
			name: "missing title",
			issue: Issue{
				ID:        "wf-1",
				State:     StateBacklog,
				IssueType: TypeTask,
			},
			wantErr: true,
			errMsg:  "title is required",
		},
		{
			name: "title too long",
			issue: Issue{
				ID:        "wf-1",
				Title:     string(make([]byte, 501)),
				State:     StateBacklog,
				IssueType: TypeTask,
			},
			wantErr: true,
			errMsg:  "title must be 500 characters or less",
		},
		{
			name: "invalid priority",
			issue: Issue{
				ID:        "wf-1",
				Title:     "Test",
				State:     StateBacklog,
				Priority:  Priority(9),
				IssueType: TypeTask,
			},
			wantErr: true,
			errMsg:  "invalid priority",
		},
		{
			name: "self dependency",
			issue: Issue{
				ID:           "wf-1",
				Title:        "Test",
				State:        StateBacklog,
				IssueType:    TypeTask,
				Dependencies: []string{"wf-1"},
			},
			wantErr: true,
			errMsg:  "depends on itself",
		},
		{
			name: "done without closed_at",
			issue: Issue{
				ID:        "wf-1",
				Title:     "Test",
				State:     StateDone,
				IssueType: TypeTask,
			},
			wantErr: true,
			errMsg:  "must have closed_at",
		},
		{
			name: "ready with closed_at",
			issue: Issue{
				ID:        "wf-1",
				Title:     "Test",
				State:     StateReady,
				IssueType: TypeTask,
				ClosedAt:  &now,
			},
			wantErr: true,
			errMsg:  "cannot have closed_at",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.issue.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestIssueCloneIsDeep(t *testing.T) {
	orig := &Issue{
		ID:           "wf-1",
		Dependencies: []string{"wf-2"},
		GateStatus:   map[string]GateStatus{"tests": GatePending},
		Labels:       []string{"area:core"},
	}
	c := orig.Clone()
	c.Dependencies[0] = "wf-3"
	c.GateStatus["tests"] = GatePassed
	c.Labels = append(c.Labels, "kind:bug")

	if orig.Dependencies[0] != "wf-2" {
		t.Errorf("clone aliased dependencies")
	}
	if orig.GateStatus["tests"] != GatePending {
		t.Errorf("clone aliased gate status")
	}
	if len(orig.Labels) != 1 {
		t.Errorf("clone aliased labels")
	}
}

func TestPriorityJSON(t *testing.T) {
	for _, p := range []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical} {
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal %v: %v", p, err)
		}
		if string(data) != fmt.Sprintf("%q", p.String()) {
			t.Errorf("marshal %v = %s", p, data)
		}
		var back Priority
		if err := json.Unmarshal(data, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if back != p {
			t.Errorf("round trip %v -> %v", p, back)
		}
	}

	var p Priority
	if err := json.Unmarshal([]byte(`"urgent"`), &p); err == nil {
		t.Error("expected error for unknown priority name")
	}
}

func TestPriorityOrdering(t *testing.T) {
	if !(PriorityLow < PriorityNormal && PriorityNormal < PriorityHigh && PriorityHigh < PriorityCritical) {
		t.Fatal("priorities are not ordered Low < Normal < High < Critical")
	}
}

func TestParseState(t *testing.T) {
	tests := map[string]State{
		"backlog":     StateBacklog,
		"READY":       StateReady,
		"in-progress": StateInProgress,
		"in_progress": StateInProgress,
		"gated":       StateGated,
		"done":        StateDone,
		"rejected":    StateRejected,
	}
	for in, want := range tests {
		got, err := ParseState(in)
		if err != nil {
			t.Errorf("ParseState(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseState(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := ParseState("closed"); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestSplitLabel(t *testing.T) {
	tests := []struct {
		in     string
		ns, v  string
		wantOK bool
	}{
		{"area:core", "area", "core", true},
		{"area:ui:web", "area", "ui:web", true},
		{"plain", "", "", false},
		{":x", "", "", false},
		{"x:", "", "", false},
	}
	for _, tt := range tests {
		ns, v, ok := SplitLabel(tt.in)
		if ns != tt.ns || v != tt.v || ok != tt.wantOK {
			t.Errorf("SplitLabel(%q) = (%q, %q, %v), want (%q, %q, %v)", tt.in, ns, v, ok, tt.ns, tt.v, tt.wantOK)
		}
	}
}

func TestGateJSONRoundTrip(t *testing.T) {
	gates := []Gate{
		{Key: "review", Title: "Code review", Stage: StagePostcheck, Mode: GateModeManual, Checker: ManualChecker{}},
		{
			Key:   "tests",
			Stage: StagePostcheck,
			Mode:  GateModeAuto,
			Checker: ExecChecker{
				Command: "go test ./...",
				Timeout: 90 * time.Second,
				Env:     map[string]string{"CGO_ENABLED": "0"},
				WorkDir: "sub",
			},
		},
		{Key: "design", Stage: StagePrecheck, Mode: GateModeManual},
	}
	for _, g := range gates {
		t.Run(g.Key, func(t *testing.T) {
			data, err := json.Marshal(g)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			var back Gate
			if err := json.Unmarshal(data, &back); err != nil {
				t.Fatalf("unmarshal %s: %v", data, err)
			}
			if back.Key != g.Key || back.Stage != g.Stage || back.Mode != g.Mode {
				t.Fatalf("round trip mismatch: %+v vs %+v", back, g)
			}
			if ec, ok := g.Checker.(ExecChecker); ok {
				got, ok := back.Checker.(ExecChecker)
				if !ok {
					t.Fatalf("checker variant lost: %T", back.Checker)
				}
				if got.Command != ec.Command || got.Timeout != ec.Timeout || got.WorkDir != ec.WorkDir || got.Env["CGO_ENABLED"] != "0" {
					t.Errorf("exec checker mismatch: %+v", got)
				}
			}
		})
	}
}

func TestGateValidate(t *testing.T) {
	tests := []struct {
		name    string
		gate    Gate
		wantErr bool
	}{
		{"manual ok", Gate{Key: "k", Stage: StagePrecheck, Mode: GateModeManual}, false},
		{"exec ok", Gate{Key: "k", Stage: StagePostcheck, Mode: GateModeAuto, Checker: ExecChecker{Command: "true"}}, false},
		{"missing key", Gate{Stage: StagePrecheck, Mode: GateModeManual}, true},
		{"bad stage", Gate{Key: "k", Stage: "during", Mode: GateModeManual}, true},
		{"auto without exec", Gate{Key: "k", Stage: StagePrecheck, Mode: GateModeAuto}, true},
		{"exec in manual mode", Gate{Key: "k", Stage: StagePrecheck, Mode: GateModeManual, Checker: ExecChecker{Command: "true"}}, true},
		{"exec without command", Gate{Key: "k", Stage: StagePrecheck, Mode: GateModeAuto, Checker: ExecChecker{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.gate.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{errors.New("plain"), ""},
		{fmt.Errorf("load wf-1: %w", ErrNotFound), "NOT_FOUND"},
		{fmt.Errorf("claim: %w", ErrAlreadyAssigned), "ALREADY_ASSIGNED"},
		{fmt.Errorf("%w: %w", ErrCycleDetected, ErrSelfDependency), "SELF_DEPENDENCY"},
		{fmt.Errorf("add: %w", ErrCycleDetected), "CYCLE_DETECTED"},
		{ErrGateValidationFailed, "GATE_VALIDATION_FAILED"},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
