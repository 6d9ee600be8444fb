package lifecycle

import (
	"context"
	"fmt"

	"github.com/steveyegge/weft/internal/gate"
	"github.com/steveyegge/weft/internal/idgen"
	"github.com/steveyegge/weft/internal/types"
)

// DefineGate creates or replaces a global gate definition. Issues requiring
// the key are re-evaluated against the new definition.
func (s *Service) DefineGate(ctx context.Context, def *types.Gate, actor string) error {
	if err := def.Validate(); err != nil {
		return err
	}
	return s.update(ctx, actor, func(u *unit) error {
		if err := u.tx.SaveGate(u.ctx, def); err != nil {
			return err
		}
		u.gates[def.Key] = def
		return nil
	})
}

// Gates returns all global gate definitions sorted by key.
func (s *Service) Gates(ctx context.Context) ([]*types.Gate, error) {
	var out []*types.Gate
	err := s.view(ctx, func(u *unit) error {
		var err error
		out, err = u.tx.ListGates(ctx)
		return err
	})
	return out, err
}

// AddGate makes issue id require the defined gate key. A precheck gate
// added to a Ready issue sends it back to Backlog.
func (s *Service) AddGate(ctx context.Context, id, key, actor string) (*types.Issue, error) {
	var out *types.Issue
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		if issue.State.IsTerminal() {
			return fmt.Errorf("add gate to %s: issue is %s: %w", issue.ID, issue.State, types.ErrInvalidState)
		}
		if err := u.requireGate(issue, key); err != nil {
			return err
		}
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

func (u *unit) requireGate(issue *types.Issue, key string) error {
	def, ok := u.gates[key]
	if !ok {
		return fmt.Errorf("gate %q is not defined: %w", key, types.ErrNotFound)
	}
	if gate.Require(issue, key) {
		u.touch(issue)
		u.record(issue.ID, types.EventGateAdded, "", key, string(def.Stage))
	}
	return nil
}

// PassGate records a passing resolution of gate key on issue id. run may
// carry checker details; nil records a manual attestation.
func (s *Service) PassGate(ctx context.Context, id, key, actor string, run *types.GateRunResult) (*types.GateRunResult, error) {
	return s.resolveGate(ctx, id, key, actor, types.GatePassed, run)
}

// FailGate records a failing resolution of gate key on issue id.
func (s *Service) FailGate(ctx context.Context, id, key, actor string, run *types.GateRunResult) (*types.GateRunResult, error) {
	return s.resolveGate(ctx, id, key, actor, types.GateFailed, run)
}

// RecordGateRun records a checker result, passing or failing the gate by its
// outcome.
func (s *Service) RecordGateRun(ctx context.Context, run *types.GateRunResult, actor string) (*types.GateRunResult, error) {
	switch run.Outcome {
	case types.GatePassed, types.GateFailed:
	default:
		return nil, fmt.Errorf("gate run outcome must be passed or failed, got %q", run.Outcome)
	}
	return s.resolveGate(ctx, run.IssueID, run.GateKey, actor, run.Outcome, run)
}

func (s *Service) resolveGate(ctx context.Context, id, key, actor string, outcome types.GateStatus, run *types.GateRunResult) (*types.GateRunResult, error) {
	var rec types.GateRunResult
	if run != nil {
		rec = *run
	}
	if rec.RunID == "" {
		runID, err := idgen.RunID()
		if err != nil {
			return nil, err
		}
		rec.RunID = runID
	}

	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		if issue.State.IsTerminal() {
			return fmt.Errorf("resolve gate %s on %s: issue is %s: %w", key, issue.ID, issue.State, types.ErrInvalidState)
		}
		if err := gate.SetStatus(issue, key, outcome); err != nil {
			return err
		}
		rec.IssueID = issue.ID
		rec.GateKey = key
		rec.Outcome = outcome
		rec.Actor = actor
		if rec.StartedAt.IsZero() {
			rec.StartedAt = u.now
		}
		if rec.FinishedAt.IsZero() {
			rec.FinishedAt = u.now
		}
		if err := u.tx.SaveGateRun(u.ctx, &rec); err != nil {
			return err
		}
		u.touch(issue)
		typ := types.EventGatePassed
		if outcome == types.GateFailed {
			typ = types.EventGateFailed
		}
		u.record(issue.ID, typ, key, rec.RunID, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("gate resolved", "issue", rec.IssueID, "gate", key, "outcome", outcome, "run", rec.RunID, "actor", actor)
	return &rec, nil
}

// GateRuns returns the run history of issue id in recording order.
func (s *Service) GateRuns(ctx context.Context, id string) ([]*types.GateRunResult, error) {
	var out []*types.GateRunResult
	err := s.view(ctx, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		out, err = u.tx.ListGateRuns(ctx, issue.ID)
		return err
	})
	return out, err
}

// PendingExecGates returns the definitions of the exec gates issue id
// requires at stage that have not passed yet. The checker runner executes
// these and feeds results back through RecordGateRun.
func (s *Service) PendingExecGates(ctx context.Context, id string, stage types.GateStage) (*types.Issue, []*types.Gate, error) {
	var (
		issue *types.Issue
		out   []*types.Gate
	)
	err := s.view(ctx, func(u *unit) error {
		var err error
		issue, err = u.resolve(id)
		if err != nil {
			return err
		}
		for _, key := range issue.RequiredGates {
			def, ok := u.gates[key]
			if !ok || def.Stage != stage || issue.GateStatus[key] == types.GatePassed {
				continue
			}
			if _, isExec := def.Checker.(types.ExecChecker); isExec {
				out = append(out, def)
			}
		}
		return nil
	})
	return issue, out, err
}

// ApplyPreset requires every gate of the named preset on each issue,
// defining missing gates from the preset templates. Existing definitions
// are kept. It returns the number of requirements added.
func (s *Service) ApplyPreset(ctx context.Context, name string, ids []string, actor string) (int, error) {
	added := 0
	err := s.update(ctx, actor, func(u *unit) error {
		for _, id := range ids {
			issue, err := u.resolve(id)
			if err != nil {
				return err
			}
			if issue.State.IsTerminal() {
				return fmt.Errorf("apply preset to %s: issue is %s: %w", issue.ID, issue.State, types.ErrInvalidState)
			}
			n, err := u.applyPreset(name, issue)
			if err != nil {
				return err
			}
			added += n
		}
		return nil
	})
	return added, err
}

func (u *unit) applyPreset(name string, issue *types.Issue) (int, error) {
	preset := u.svc.presets.Get(name)
	if preset == nil {
		return 0, fmt.Errorf("preset %q: %w", name, types.ErrNotFound)
	}
	defs, err := preset.Definitions()
	if err != nil {
		return 0, err
	}
	added := 0
	for _, def := range defs {
		if _, ok := u.gates[def.Key]; !ok {
			if err := u.tx.SaveGate(u.ctx, def); err != nil {
				return 0, err
			}
			u.gates[def.Key] = def
		}
		if !issue.RequiresGate(def.Key) {
			added++
		}
		if err := u.requireGate(issue, def.Key); err != nil {
			return 0, err
		}
	}
	return added, nil
}
