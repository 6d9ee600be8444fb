package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// GateStage determines which lifecycle transition a gate blocks.
type GateStage string

const (
	// StagePrecheck gates block Backlog -> Ready.
	StagePrecheck GateStage = "precheck"
	// StagePostcheck gates block the transition to Done.
	StagePostcheck GateStage = "postcheck"
)

// IsValid checks if the stage value is valid
func (s GateStage) IsValid() bool {
	return s == StagePrecheck || s == StagePostcheck
}

// GateMode says how a gate gets resolved.
type GateMode string

const (
	GateModeManual GateMode = "manual" // Attested by a human or agent
	GateModeAuto   GateMode = "auto"   // Resolved by running a checker
)

// IsValid checks if the mode value is valid
func (m GateMode) IsValid() bool {
	return m == GateModeManual || m == GateModeAuto
}

// GateStatus is the per-issue status of a required gate.
type GateStatus string

const (
	GatePending GateStatus = "pending"
	GatePassed  GateStatus = "passed"
	GateFailed  GateStatus = "failed"
)

// IsValid checks if the status value is valid
func (s GateStatus) IsValid() bool {
	switch s {
	case GatePending, GatePassed, GateFailed:
		return true
	}
	return false
}

// CheckerKind discriminates the Checker variants.
type CheckerKind string

const (
	CheckerManual CheckerKind = "manual"
	CheckerExec   CheckerKind = "exec"
)

// Checker is a closed union: ManualChecker or ExecChecker.
// Switch over it with a type switch; new kinds are new variants.
type Checker interface {
	Kind() CheckerKind
	isChecker()
}

// ManualChecker is resolved by explicit pass/fail attestation.
type ManualChecker struct{}

func (ManualChecker) Kind() CheckerKind { return CheckerManual }
func (ManualChecker) isChecker()        {}

// ExecChecker is resolved by running a shell command; exit 0 passes.
type ExecChecker struct {
	Command string
	Timeout time.Duration
	Env     map[string]string
	WorkDir string
}

func (ExecChecker) Kind() CheckerKind { return CheckerExec }
func (ExecChecker) isChecker()        {}

// Gate is a global gate definition referenced by key from issues.
type Gate struct {
	Key     string
	Title   string
	Stage   GateStage
	Mode    GateMode
	Checker Checker
}

// Validate checks the definition and that the checker variant agrees with the mode.
func (g *Gate) Validate() error {
	if g.Key == "" {
		return fmt.Errorf("gate key is required")
	}
	if !g.Stage.IsValid() {
		return fmt.Errorf("gate %s: invalid stage %q", g.Key, g.Stage)
	}
	if !g.Mode.IsValid() {
		return fmt.Errorf("gate %s: invalid mode %q", g.Key, g.Mode)
	}
	switch c := g.Checker.(type) {
	case nil, ManualChecker:
		if g.Mode == GateModeAuto {
			return fmt.Errorf("gate %s: auto mode requires an exec checker", g.Key)
		}
	case ExecChecker:
		if g.Mode != GateModeAuto {
			return fmt.Errorf("gate %s: exec checker requires auto mode", g.Key)
		}
		if c.Command == "" {
			return fmt.Errorf("gate %s: exec checker has no command", g.Key)
		}
		if c.Timeout < 0 {
			return fmt.Errorf("gate %s: negative timeout", g.Key)
		}
	default:
		return fmt.Errorf("gate %s: unknown checker %T", g.Key, c)
	}
	return nil
}

type gateJSON struct {
	Key     string       `json:"key"`
	Title   string       `json:"title,omitempty"`
	Stage   GateStage    `json:"stage"`
	Mode    GateMode     `json:"mode"`
	Checker *checkerJSON `json:"checker,omitempty"`
}

type checkerJSON struct {
	Kind    CheckerKind       `json:"kind"`
	Command string            `json:"command,omitempty"`
	Timeout string            `json:"timeout,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	WorkDir string            `json:"workdir,omitempty"`
}

// MarshalJSON flattens the checker union into a kind-tagged object.
func (g Gate) MarshalJSON() ([]byte, error) {
	out := gateJSON{Key: g.Key, Title: g.Title, Stage: g.Stage, Mode: g.Mode}
	switch c := g.Checker.(type) {
	case nil:
	case ManualChecker:
		out.Checker = &checkerJSON{Kind: CheckerManual}
	case ExecChecker:
		cj := &checkerJSON{Kind: CheckerExec, Command: c.Command, Env: c.Env, WorkDir: c.WorkDir}
		if c.Timeout > 0 {
			cj.Timeout = c.Timeout.String()
		}
		out.Checker = cj
	default:
		return nil, fmt.Errorf("gate %s: unknown checker %T", g.Key, c)
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the checker variant from its kind tag.
func (g *Gate) UnmarshalJSON(data []byte) error {
	var in gateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*g = Gate{Key: in.Key, Title: in.Title, Stage: in.Stage, Mode: in.Mode}
	if in.Checker == nil {
		return nil
	}
	checker, err := in.Checker.decode()
	if err != nil {
		return fmt.Errorf("gate %s: %w", in.Key, err)
	}
	g.Checker = checker
	return nil
}

func (c *checkerJSON) decode() (Checker, error) {
	switch c.Kind {
	case CheckerManual:
		return ManualChecker{}, nil
	case CheckerExec:
		ec := ExecChecker{Command: c.Command, Env: c.Env, WorkDir: c.WorkDir}
		if c.Timeout != "" {
			d, err := time.ParseDuration(c.Timeout)
			if err != nil {
				return nil, fmt.Errorf("invalid checker timeout %q: %w", c.Timeout, err)
			}
			ec.Timeout = d
		}
		return ec, nil
	}
	return nil, fmt.Errorf("unknown checker kind %q", c.Kind)
}

// GateRunResult is an immutable record of one gate resolution.
type GateRunResult struct {
	RunID      string        `json:"run_id"`
	IssueID    string        `json:"issue_id"`
	GateKey    string        `json:"gate_key"`
	Outcome    GateStatus    `json:"outcome"` // passed or failed
	Command    string        `json:"command,omitempty"`
	ExitCode   int           `json:"exit_code"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
	Output     string        `json:"output,omitempty"`
	Actor      string        `json:"actor"`
}
