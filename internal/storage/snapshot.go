package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/steveyegge/weft/internal/types"
)

// Snapshot is the complete in-memory state of a control directory.
// Backends load one per transaction (jsonl) or keep one resident (memory).
type Snapshot struct {
	Issues     map[string]*types.Issue
	Gates      map[string]*types.Gate
	Namespaces map[string]*types.LabelNamespace
	Events     []*types.Event
	GateRuns   []*types.GateRunResult
	MaxSeq     int64
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Issues:     make(map[string]*types.Issue),
		Gates:      make(map[string]*types.Gate),
		Namespaces: make(map[string]*types.LabelNamespace),
	}
}

// Clone copies the mutable maps. Events and gate runs are immutable once
// appended, so their slices are shared up to their current length.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{
		Issues:     make(map[string]*types.Issue, len(s.Issues)),
		Gates:      make(map[string]*types.Gate, len(s.Gates)),
		Namespaces: make(map[string]*types.LabelNamespace, len(s.Namespaces)),
		Events:     slices.Clip(s.Events),
		GateRuns:   slices.Clip(s.GateRuns),
		MaxSeq:     s.MaxSeq,
	}
	for id, issue := range s.Issues {
		c.Issues[id] = issue.Clone()
	}
	for k, g := range s.Gates {
		gc := *g
		c.Gates[k] = &gc
	}
	for k, ns := range s.Namespaces {
		nc := *ns
		nc.Values = slices.Clone(ns.Values)
		c.Namespaces[k] = &nc
	}
	return c
}

// Changes records what a transaction modified so backends can persist only
// the affected files.
type Changes struct {
	Issues     bool
	Gates      bool
	Namespaces bool
	Events     []*types.Event
	GateRuns   []*types.GateRunResult
}

// Empty reports whether the transaction changed nothing.
func (c *Changes) Empty() bool {
	return !c.Issues && !c.Gates && !c.Namespaces && len(c.Events) == 0 && len(c.GateRuns) == 0
}

// SnapshotTx implements Tx over a Snapshot. Backends create one per Update or
// View and inspect Changes afterwards.
type SnapshotTx struct {
	snap     *Snapshot
	readOnly bool
	changes  Changes
}

var _ Tx = (*SnapshotTx)(nil)

// NewSnapshotTx returns a Tx over snap. Writes mutate snap in place.
func NewSnapshotTx(snap *Snapshot, readOnly bool) *SnapshotTx {
	return &SnapshotTx{snap: snap, readOnly: readOnly}
}

// Changes returns the accumulated modifications.
func (t *SnapshotTx) Changes() *Changes {
	return &t.changes
}

func (t *SnapshotTx) writable(op string) error {
	if t.readOnly {
		return fmt.Errorf("%s: %w", op, ErrReadOnly)
	}
	return nil
}

func (t *SnapshotTx) LoadIssue(ctx context.Context, id string) (*types.Issue, error) {
	issue, ok := t.snap.Issues[id]
	if !ok {
		return nil, fmt.Errorf("issue %s: %w", id, types.ErrNotFound)
	}
	return issue.Clone(), nil
}

// SaveIssue validates and stores issue, assigning Seq on first save and bumping
// Revision. The caller's copy is updated with the stored Seq and Revision.
func (t *SnapshotTx) SaveIssue(ctx context.Context, issue *types.Issue) error {
	if err := t.writable("save issue"); err != nil {
		return err
	}
	if issue.ID == "" {
		return fmt.Errorf("save issue: id is required")
	}
	if err := issue.Validate(); err != nil {
		return fmt.Errorf("save issue %s: %w", issue.ID, err)
	}
	if existing, ok := t.snap.Issues[issue.ID]; ok {
		if existing.Revision != issue.Revision {
			return fmt.Errorf("save issue %s: have revision %d, stored %d: %w",
				issue.ID, issue.Revision, existing.Revision, ErrStaleRevision)
		}
	} else if issue.Seq == 0 {
		issue.Seq = t.NextSeq(ctx)
	}
	if issue.Seq > t.snap.MaxSeq {
		t.snap.MaxSeq = issue.Seq
	}
	issue.Revision++
	t.snap.Issues[issue.ID] = issue.Clone()
	t.changes.Issues = true
	return nil
}

// DeleteIssue removes the record only. Other issues keep any dependency
// references to it; those resolve as missing when read.
func (t *SnapshotTx) DeleteIssue(ctx context.Context, id string) error {
	if err := t.writable("delete issue"); err != nil {
		return err
	}
	if _, ok := t.snap.Issues[id]; !ok {
		return fmt.Errorf("issue %s: %w", id, types.ErrNotFound)
	}
	delete(t.snap.Issues, id)
	t.changes.Issues = true
	return nil
}

// ListIssues returns copies of all issues in creation order.
func (t *SnapshotTx) ListIssues(ctx context.Context) ([]*types.Issue, error) {
	issues := make([]*types.Issue, 0, len(t.snap.Issues))
	for _, issue := range t.snap.Issues {
		issues = append(issues, issue.Clone())
	}
	types.SortIssues(issues, types.SortFieldCreated, false)
	return issues, nil
}

func (t *SnapshotTx) ResolveIssueID(ctx context.Context, prefix string) (string, error) {
	ids := make([]string, 0, len(t.snap.Issues))
	for id := range t.snap.Issues {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ResolveID(ids, prefix)
}

// NextSeq returns the creation sequence the next new issue will receive.
func (t *SnapshotTx) NextSeq(ctx context.Context) int64 {
	return t.snap.MaxSeq + 1
}

func (t *SnapshotTx) AppendEvent(ctx context.Context, event *types.Event) error {
	if err := t.writable("append event"); err != nil {
		return err
	}
	e := *event
	t.snap.Events = append(t.snap.Events, &e)
	t.changes.Events = append(t.changes.Events, &e)
	return nil
}

// ListEvents returns the events for issueID in append order, or every event
// when issueID is empty.
func (t *SnapshotTx) ListEvents(ctx context.Context, issueID string) ([]*types.Event, error) {
	var out []*types.Event
	for _, e := range t.snap.Events {
		if issueID == "" || e.IssueID == issueID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (t *SnapshotTx) LoadGate(ctx context.Context, key string) (*types.Gate, error) {
	g, ok := t.snap.Gates[key]
	if !ok {
		return nil, fmt.Errorf("gate %s: %w", key, types.ErrNotFound)
	}
	c := *g
	return &c, nil
}

func (t *SnapshotTx) SaveGate(ctx context.Context, gate *types.Gate) error {
	if err := t.writable("save gate"); err != nil {
		return err
	}
	if err := gate.Validate(); err != nil {
		return err
	}
	c := *gate
	t.snap.Gates[gate.Key] = &c
	t.changes.Gates = true
	return nil
}

// ListGates returns gate definitions sorted by key.
func (t *SnapshotTx) ListGates(ctx context.Context) ([]*types.Gate, error) {
	gates := make([]*types.Gate, 0, len(t.snap.Gates))
	for _, g := range t.snap.Gates {
		c := *g
		gates = append(gates, &c)
	}
	sort.Slice(gates, func(i, j int) bool { return gates[i].Key < gates[j].Key })
	return gates, nil
}

func (t *SnapshotTx) SaveGateRun(ctx context.Context, run *types.GateRunResult) error {
	if err := t.writable("save gate run"); err != nil {
		return err
	}
	if run.RunID == "" {
		return fmt.Errorf("save gate run: run id is required")
	}
	for _, r := range t.snap.GateRuns {
		if r.RunID == run.RunID {
			return fmt.Errorf("gate run %s already recorded", run.RunID)
		}
	}
	r := *run
	t.snap.GateRuns = append(t.snap.GateRuns, &r)
	t.changes.GateRuns = append(t.changes.GateRuns, &r)
	return nil
}

func (t *SnapshotTx) LoadGateRun(ctx context.Context, runID string) (*types.GateRunResult, error) {
	for _, r := range t.snap.GateRuns {
		if r.RunID == runID {
			c := *r
			return &c, nil
		}
	}
	return nil, fmt.Errorf("gate run %s: %w", runID, types.ErrNotFound)
}

// ListGateRuns returns the run history for issueID, oldest first.
func (t *SnapshotTx) ListGateRuns(ctx context.Context, issueID string) ([]*types.GateRunResult, error) {
	var out []*types.GateRunResult
	for _, r := range t.snap.GateRuns {
		if r.IssueID == issueID {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (t *SnapshotTx) LabelNamespaces(ctx context.Context) ([]*types.LabelNamespace, error) {
	out := make([]*types.LabelNamespace, 0, len(t.snap.Namespaces))
	for _, ns := range t.snap.Namespaces {
		c := *ns
		c.Values = slices.Clone(ns.Values)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *SnapshotTx) SaveLabelNamespace(ctx context.Context, ns *types.LabelNamespace) error {
	if err := t.writable("save label namespace"); err != nil {
		return err
	}
	name := strings.TrimSpace(ns.Name)
	if name == "" || strings.Contains(name, ":") {
		return fmt.Errorf("invalid label namespace name %q", ns.Name)
	}
	c := *ns
	c.Name = name
	c.Values = slices.Clone(ns.Values)
	t.snap.Namespaces[name] = &c
	t.changes.Namespaces = true
	return nil
}
