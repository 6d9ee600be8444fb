package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"github.com/steveyegge/weft/internal/gate"
	"github.com/steveyegge/weft/internal/types"
)

// ClaimOptions refines ClaimIssue.
type ClaimOptions struct {
	// Assignee receives the issue. Empty means the actor.
	Assignee string
	// ExpectedRevision is the revision the caller observed when it picked
	// the issue. When non-zero and stale, the claim fails ErrConcurrentClaim.
	ExpectedRevision int64
	// MaxAssigned caps the number of InProgress issues the assignee may
	// hold. Zero means no cap.
	MaxAssigned int
}

// ClaimIssue assigns a Ready issue and moves it to InProgress. The check and
// the write happen in one Store transaction, so of several concurrent claims
// exactly one wins.
func (s *Service) ClaimIssue(ctx context.Context, id, actor string, opts ClaimOptions) (*types.Issue, error) {
	assignee := opts.Assignee
	if assignee == "" {
		assignee = actor
	}
	var claimed *types.Issue
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		if opts.ExpectedRevision != 0 && issue.Revision != opts.ExpectedRevision {
			return fmt.Errorf("claim %s: observed revision %d, now %d: %w",
				issue.ID, opts.ExpectedRevision, issue.Revision, types.ErrConcurrentClaim)
		}
		if issue.Assignee != "" {
			return fmt.Errorf("claim %s: assigned to %s: %w", issue.ID, issue.Assignee, types.ErrAlreadyAssigned)
		}
		if issue.State != types.StateReady {
			return fmt.Errorf("claim %s: issue is %s, not ready: %w", issue.ID, issue.State, types.ErrInvalidState)
		}
		if opts.MaxAssigned > 0 {
			if load := u.load(assignee); load >= opts.MaxAssigned {
				return fmt.Errorf("claim %s: %s holds %d of %d: %w",
					issue.ID, assignee, load, opts.MaxAssigned, types.ErrCapacityExceeded)
			}
		}
		issue.Assignee = assignee
		u.record(issue.ID, types.EventClaimed, "", assignee, "")
		u.setState(issue, types.StateInProgress, "claimed by "+assignee)
		claimed = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("issue claimed", "issue", claimed.ID, "assignee", assignee, "actor", actor)
	return claimed.Clone(), nil
}

// load counts the InProgress issues assigned to assignee.
func (u *unit) load(assignee string) int {
	n := 0
	for _, issue := range u.order {
		if issue.State == types.StateInProgress && issue.Assignee == assignee {
			n++
		}
	}
	return n
}

// WorkerLoad returns the number of InProgress issues assigned to assignee.
func (s *Service) WorkerLoad(ctx context.Context, assignee string) (int, error) {
	var n int
	err := s.view(ctx, func(u *unit) error {
		n = u.load(assignee)
		return nil
	})
	return n, err
}

// ReleaseIssue unassigns an InProgress issue. It returns to Ready, or to
// Backlog if it became blocked while in progress.
func (s *Service) ReleaseIssue(ctx context.Context, id, actor, reason string) (*types.Issue, error) {
	var released *types.Issue
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		if issue.State != types.StateInProgress {
			return fmt.Errorf("release %s: issue is %s, not in progress: %w", issue.ID, issue.State, types.ErrInvalidState)
		}
		prev := issue.Assignee
		issue.Assignee = ""
		u.touch(issue)
		u.record(issue.ID, types.EventReleased, prev, "", reason)
		u.setState(issue, u.openState(u.graph(), issue), "released")
		released = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released.Clone(), nil
}

// CompleteIssue attempts InProgress -> Done. When postcheck gates are not
// all passed the issue is committed as Gated and the returned error wraps
// ErrGateValidationFailed; the returned issue reflects the committed state
// either way. Calling it on a Gated issue re-checks the gates.
func (s *Service) CompleteIssue(ctx context.Context, id, actor string) (*types.Issue, error) {
	var (
		completed *types.Issue
		gateErr   error
	)
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		if issue.State != types.StateInProgress && issue.State != types.StateGated {
			return fmt.Errorf("complete %s: issue is %s: %w", issue.ID, issue.State, types.ErrInvalidState)
		}
		completed = issue
		ev := gate.Evaluate(issue, types.StagePostcheck, u.gates)
		if ev.Satisfied() {
			u.setState(issue, types.StateDone, "completed")
			return nil
		}
		u.setState(issue, types.StateGated, "waiting on postcheck gates: "+strings.Join(ev.Unsatisfied(), ", "))
		gateErr = fmt.Errorf("complete %s: unsatisfied postcheck gates %s: %w",
			issue.ID, strings.Join(ev.Unsatisfied(), ", "), types.ErrGateValidationFailed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if gateErr != nil {
		s.logger.Info("issue gated", "issue", completed.ID, "actor", actor)
	} else {
		s.logger.Info("issue done", "issue", completed.ID, "actor", actor)
	}
	return completed.Clone(), gateErr
}

// ReopenIssue moves a Done issue back to Ready or Backlog. Rejected is final
// and cannot be reopened.
// Postcheck gates go back to pending and the assignee is cleared.
// Dependents that were Ready are re-blocked in the same transaction.
func (s *Service) ReopenIssue(ctx context.Context, id, actor, reason string) (*types.Issue, error) {
	var reopened *types.Issue
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		if issue.State != types.StateDone {
			return fmt.Errorf("reopen %s: issue is %s: %w", issue.ID, issue.State, types.ErrInvalidState)
		}
		for _, key := range issue.RequiredGates {
			if def, ok := u.gates[key]; ok && def.Stage == types.StagePostcheck {
				_ = gate.SetStatus(issue, key, types.GatePending)
			}
		}
		issue.Assignee = ""
		if reason == "" {
			reason = "reopened"
		}
		u.setState(issue, u.openState(u.graph(), issue), reason)
		reopened = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reopened.Clone(), nil
}

// RejectIssue closes any non-terminal issue as Rejected. Dependents stay
// blocked: a rejected dependency is never satisfied.
func (s *Service) RejectIssue(ctx context.Context, id, actor, reason string) (*types.Issue, error) {
	var rejected *types.Issue
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		if issue.State.IsTerminal() {
			return fmt.Errorf("reject %s: issue is already %s: %w", issue.ID, issue.State, types.ErrInvalidState)
		}
		issue.Assignee = ""
		u.setState(issue, types.StateRejected, reason)
		rejected = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rejected.Clone(), nil
}
