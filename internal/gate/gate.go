// Package gate implements per-issue gate requirements.
//
// Gate definitions are global and referenced by key. Each issue lists the keys
// it requires and tracks a pending/passed/failed status per key:
//   - precheck gates must pass before an issue can become Ready
//   - postcheck gates must pass before an issue can become Done
//
// This package only evaluates recorded status. Running exec checkers is the
// job of internal/checker; the lifecycle records their terminal outcomes.
package gate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/weft/internal/types"
)

// Evaluation summarizes the required gates of one issue at one stage.
type Evaluation struct {
	Stage   types.GateStage
	Passed  []string
	Pending []string
	Failed  []string
	// Undefined lists required keys with no global definition. They block
	// both stages until defined and passed.
	Undefined []string
}

// Satisfied reports whether every required gate of the stage has passed.
func (e Evaluation) Satisfied() bool {
	return len(e.Pending) == 0 && len(e.Failed) == 0 && len(e.Undefined) == 0
}

// Unsatisfied returns the keys that still block the stage, sorted.
func (e Evaluation) Unsatisfied() []string {
	out := make([]string, 0, len(e.Pending)+len(e.Failed)+len(e.Undefined))
	out = append(out, e.Pending...)
	out = append(out, e.Failed...)
	out = append(out, e.Undefined...)
	sort.Strings(out)
	return out
}

// Evaluate classifies the issue's required gates for stage using defs.
func Evaluate(issue *types.Issue, stage types.GateStage, defs map[string]*types.Gate) Evaluation {
	ev := Evaluation{Stage: stage}
	for _, key := range issue.RequiredGates {
		def, ok := defs[key]
		if !ok {
			ev.Undefined = append(ev.Undefined, key)
			continue
		}
		if def.Stage != stage {
			continue
		}
		switch issue.GateStatus[key] {
		case types.GatePassed:
			ev.Passed = append(ev.Passed, key)
		case types.GateFailed:
			ev.Failed = append(ev.Failed, key)
		default:
			ev.Pending = append(ev.Pending, key)
		}
	}
	return ev
}

// PrecheckSatisfied reports whether the issue may leave Backlog.
func PrecheckSatisfied(issue *types.Issue, defs map[string]*types.Gate) bool {
	return Evaluate(issue, types.StagePrecheck, defs).Satisfied()
}

// PostcheckSatisfied reports whether the issue may become Done.
func PostcheckSatisfied(issue *types.Issue, defs map[string]*types.Gate) bool {
	return Evaluate(issue, types.StagePostcheck, defs).Satisfied()
}

// Require adds key to the issue's required gates with pending status.
// It returns false when the gate was already required; status is untouched then.
func Require(issue *types.Issue, key string) bool {
	if issue.RequiresGate(key) {
		return false
	}
	issue.RequiredGates = append(issue.RequiredGates, key)
	if issue.GateStatus == nil {
		issue.GateStatus = make(map[string]types.GateStatus)
	}
	issue.GateStatus[key] = types.GatePending
	return true
}

// SetStatus records a resolution for a required gate.
func SetStatus(issue *types.Issue, key string, status types.GateStatus) error {
	if !issue.RequiresGate(key) {
		return fmt.Errorf("issue %s does not require gate %q: %w", issue.ID, key, types.ErrNotFound)
	}
	if !status.IsValid() {
		return fmt.Errorf("invalid gate status %q", status)
	}
	if issue.GateStatus == nil {
		issue.GateStatus = make(map[string]types.GateStatus)
	}
	issue.GateStatus[key] = status
	return nil
}

// ParseStage parses a stage name, case-insensitive.
func ParseStage(s string) (types.GateStage, error) {
	switch types.GateStage(strings.ToLower(strings.TrimSpace(s))) {
	case types.StagePrecheck, "pre":
		return types.StagePrecheck, nil
	case types.StagePostcheck, "post":
		return types.StagePostcheck, nil
	}
	return "", fmt.Errorf("unknown gate stage %q (valid: precheck, postcheck)", s)
}
