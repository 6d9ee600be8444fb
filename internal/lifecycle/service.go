// Package lifecycle implements the issue state machine on top of a Store.
//
// Every operation runs inside one Store.Update: it loads the whole snapshot
// into a working set, applies the mutation, re-derives automatic transitions
// until nothing changes, and saves what changed together with the audit
// events. Nothing is written when the operation fails.
//
// States:
//
//	Backlog -> Ready        all dependencies Done, all precheck gates passed
//	Ready -> Backlog        re-blocked by a new dependency, gate or reopen
//	Ready -> InProgress     claim
//	InProgress -> Ready     release (or Backlog if blocked meanwhile)
//	InProgress -> Gated     done attempt with unsatisfied postcheck gates
//	InProgress -> Done      done attempt with all postcheck gates passed
//	Gated -> Done           automatic once postcheck gates pass
//	Done -> Ready/Backlog   reopen
//	* -> Rejected           reject (any non-terminal state)
package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/steveyegge/weft/internal/events"
	"github.com/steveyegge/weft/internal/gate"
	"github.com/steveyegge/weft/internal/graph"
	"github.com/steveyegge/weft/internal/storage"
	"github.com/steveyegge/weft/internal/types"
)

// DefaultIssuePrefix is used for generated IDs when Options.IssuePrefix is empty.
const DefaultIssuePrefix = "wf"

// Options configures a Service.
type Options struct {
	Logger    *slog.Logger
	Publisher events.Publisher
	// Presets resolves preset names for ApplyPreset and breakdown. Nil
	// means the built-in presets.
	Presets *gate.Registry
	// Namespaces declared in configuration. Namespaces saved in the store
	// take precedence on name clashes.
	Namespaces  []*types.LabelNamespace
	IssuePrefix string
	// Clock is used for timestamps. Nil means time.Now.
	Clock func() time.Time
}

// Service exposes the lifecycle operations. It holds no issue state of its
// own and is safe for concurrent use; the Store serializes mutations.
type Service struct {
	store      storage.Store
	logger     *slog.Logger
	publisher  events.Publisher
	presets    *gate.Registry
	namespaces []*types.LabelNamespace
	prefix     string
	now        func() time.Time
}

// New creates a Service over store.
func New(store storage.Store, opts Options) *Service {
	s := &Service{
		store:      store,
		logger:     opts.Logger,
		publisher:  opts.Publisher,
		presets:    opts.Presets,
		namespaces: opts.Namespaces,
		prefix:     opts.IssuePrefix,
		now:        opts.Clock,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.publisher == nil {
		s.publisher = &events.NoopPublisher{}
	}
	if s.presets == nil {
		s.presets = gate.NewRegistryWithBuiltins()
	}
	if s.prefix == "" {
		s.prefix = DefaultIssuePrefix
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Presets returns the preset registry used by the service.
func (s *Service) Presets() *gate.Registry {
	return s.presets
}

// unit is the working set of one operation. Issues are loaded once so that
// every change to the same issue goes through one copy and one save.
type unit struct {
	ctx   context.Context
	tx    storage.Tx
	svc   *Service
	actor string
	now   time.Time

	issues  map[string]*types.Issue
	order   []*types.Issue // creation order; new issues appended
	gates   map[string]*types.Gate
	dirty   map[string]bool
	deleted []string
	events  []*types.Event
}

func (s *Service) load(ctx context.Context, tx storage.Tx, actor string) (*unit, error) {
	issues, err := tx.ListIssues(ctx)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	gateList, err := tx.ListGates(ctx)
	if err != nil {
		return nil, fmt.Errorf("list gates: %w", err)
	}
	u := &unit{
		ctx:    ctx,
		tx:     tx,
		svc:    s,
		actor:  actor,
		now:    s.now().UTC(),
		issues: make(map[string]*types.Issue, len(issues)),
		order:  issues,
		gates:  make(map[string]*types.Gate, len(gateList)),
		dirty:  make(map[string]bool),
	}
	for _, issue := range issues {
		u.issues[issue.ID] = issue
	}
	for _, g := range gateList {
		u.gates[g.Key] = g
	}
	return u, nil
}

// update runs fn in a Store transaction, then re-evaluates, saves and
// publishes. Events are published only after the commit succeeded.
func (s *Service) update(ctx context.Context, actor string, fn func(u *unit) error) error {
	if actor == "" {
		return fmt.Errorf("actor is required")
	}
	var committed *unit
	err := s.store.Update(ctx, func(tx storage.Tx) error {
		u, err := s.load(ctx, tx, actor)
		if err != nil {
			return err
		}
		if err := fn(u); err != nil {
			return err
		}
		u.reevaluate()
		if err := u.flush(); err != nil {
			return err
		}
		committed = u
		return nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, committed)
	return nil
}

// view runs fn against a read-only working set.
func (s *Service) view(ctx context.Context, fn func(u *unit) error) error {
	return s.store.View(ctx, func(tx storage.Tx) error {
		u, err := s.load(ctx, tx, "")
		if err != nil {
			return err
		}
		return fn(u)
	})
}

func (s *Service) publish(ctx context.Context, u *unit) {
	for _, e := range u.events {
		msg := events.Message{Event: e}
		if issue, ok := u.issues[e.IssueID]; ok {
			msg.Issue = issue.Clone()
		}
		if err := s.publisher.Publish(ctx, events.Topic(e.EventType), msg); err != nil {
			s.logger.Warn("publish event failed", "event", e.EventType, "issue", e.IssueID, "error", err)
		}
	}
}

// resolve maps user input (full ID or unique prefix) to a working-set issue.
func (u *unit) resolve(input string) (*types.Issue, error) {
	if issue, ok := u.issues[input]; ok {
		return issue, nil
	}
	id, err := u.tx.ResolveIssueID(u.ctx, input)
	if err != nil {
		return nil, err
	}
	issue, ok := u.issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id, types.ErrNotFound)
	}
	return issue, nil
}

func (u *unit) touch(issue *types.Issue) {
	u.dirty[issue.ID] = true
}

// add puts a newly created issue into the working set.
func (u *unit) add(issue *types.Issue) {
	u.issues[issue.ID] = issue
	u.order = append(u.order, issue)
	u.touch(issue)
}

// remove drops an issue from the working set and deletes it on flush.
func (u *unit) remove(issue *types.Issue) {
	delete(u.issues, issue.ID)
	delete(u.dirty, issue.ID)
	for i, it := range u.order {
		if it.ID == issue.ID {
			u.order = append(u.order[:i], u.order[i+1:]...)
			break
		}
	}
	u.deleted = append(u.deleted, issue.ID)
}

func (u *unit) record(issueID string, typ types.EventType, oldValue, newValue, comment string) {
	e := &types.Event{
		ID:        uuid.NewString(),
		IssueID:   issueID,
		EventType: typ,
		Actor:     u.actor,
		CreatedAt: u.now,
	}
	if oldValue != "" {
		e.OldValue = types.StrPtr(oldValue)
	}
	if newValue != "" {
		e.NewValue = types.StrPtr(newValue)
	}
	if comment != "" {
		e.Comment = types.StrPtr(comment)
	}
	u.events = append(u.events, e)
}

// setState moves issue to state, keeping closed_at in step and recording
// the transition.
func (u *unit) setState(issue *types.Issue, to types.State, comment string) {
	from := issue.State
	if from == to {
		return
	}
	issue.State = to
	if to.IsTerminal() {
		t := u.now
		issue.ClosedAt = &t
	} else {
		issue.ClosedAt = nil
	}
	u.touch(issue)
	u.record(issue.ID, types.EventStateChanged, string(from), string(to), comment)
	u.svc.logger.Debug("state changed", "issue", issue.ID, "from", from, "to", to, "actor", u.actor)
}

func (u *unit) graph() *graph.Graph {
	return graph.New(u.order)
}

// unblocked reports whether every dependency is Done and every precheck
// gate passed. Missing and rejected dependencies block.
func (u *unit) unblocked(g *graph.Graph, issue *types.Issue) bool {
	return len(g.UnmetDependencies(issue.ID)) == 0 && gate.PrecheckSatisfied(issue, u.gates)
}

// openState is the state an unassigned, non-terminal issue derives to.
func (u *unit) openState(g *graph.Graph, issue *types.Issue) types.State {
	if u.unblocked(g, issue) {
		return types.StateReady
	}
	return types.StateBacklog
}

// reevaluate applies automatic transitions over the whole working set until
// a fixpoint. Gated -> Done can unblock dependents, hence the loop.
// InProgress issues are never moved automatically.
func (u *unit) reevaluate() {
	g := u.graph()
	for {
		changed := false
		for _, issue := range u.order {
			switch issue.State {
			case types.StateBacklog:
				if u.unblocked(g, issue) {
					u.setState(issue, types.StateReady, "dependencies and precheck gates satisfied")
					changed = true
				}
			case types.StateReady:
				if !u.unblocked(g, issue) {
					u.setState(issue, types.StateBacklog, "blocked")
					changed = true
				}
			case types.StateGated:
				if gate.PostcheckSatisfied(issue, u.gates) {
					u.setState(issue, types.StateDone, "postcheck gates passed")
					changed = true
				}
			}
		}
		if !changed {
			return
		}
	}
}

// flush saves dirty issues in creation order, deletes removed ones and
// appends the audit events.
func (u *unit) flush() error {
	for _, issue := range u.order {
		if !u.dirty[issue.ID] {
			continue
		}
		issue.UpdatedAt = u.now
		if err := u.tx.SaveIssue(u.ctx, issue); err != nil {
			return err
		}
	}
	for _, id := range u.deleted {
		if err := u.tx.DeleteIssue(u.ctx, id); err != nil {
			return err
		}
	}
	for _, e := range u.events {
		if err := u.tx.AppendEvent(u.ctx, e); err != nil {
			return err
		}
	}
	return nil
}
