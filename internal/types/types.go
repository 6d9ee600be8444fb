// Package types defines core data structures for the weft scheduler.
package types

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Issue represents a unit of work tracked in the control directory.
type Issue struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description,omitempty"`
	IssueType     IssueType             `json:"issue_type,omitempty"`
	State         State                 `json:"state"`
	Priority      Priority              `json:"priority"`
	Assignee      string                `json:"assignee,omitempty"`
	Dependencies  []string              `json:"dependencies,omitempty"`   // Ordered set of issue IDs this issue waits on
	RequiredGates []string              `json:"required_gates,omitempty"` // Ordered set of gate keys
	GateStatus    map[string]GateStatus `json:"gate_status,omitempty"`
	Labels        []string              `json:"labels,omitempty"` // "namespace:value"
	DocRefs       []string              `json:"doc_refs,omitempty"`
	Parent        string                `json:"parent,omitempty"` // Set on breakdown children
	Seq           int64                 `json:"seq"`              // Creation order, assigned by the store
	Revision      int64                 `json:"revision"`         // Incremented on every save
	CreatedAt     time.Time             `json:"created_at"`
	UpdatedAt     time.Time             `json:"updated_at"`
	ClosedAt      *time.Time            `json:"closed_at,omitempty"`
}

// Validate checks if the issue has valid field values
func (i *Issue) Validate() error {
	if len(i.Title) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(i.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(i.Title))
	}
	if !i.State.IsValid() {
		return fmt.Errorf("invalid state: %s", i.State)
	}
	if !i.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %d", i.Priority)
	}
	if !i.IssueType.IsValid() {
		return fmt.Errorf("invalid issue type: %s", i.IssueType)
	}
	if slices.Contains(i.Dependencies, i.ID) {
		return fmt.Errorf("issue %s depends on itself: %w", i.ID, ErrSelfDependency)
	}
	// Enforce closed_at invariant: closed_at is set if and only if state is terminal
	if i.State.IsTerminal() && i.ClosedAt == nil {
		return fmt.Errorf("%s issues must have closed_at timestamp", i.State)
	}
	if !i.State.IsTerminal() && i.ClosedAt != nil {
		return fmt.Errorf("non-terminal issues cannot have closed_at timestamp")
	}
	return nil
}

// SetDefaults applies default values for fields omitted in JSONL records.
func (i *Issue) SetDefaults() {
	if i.State == "" {
		i.State = StateBacklog
	}
	if i.IssueType == "" {
		i.IssueType = TypeTask
	}
	if i.GateStatus == nil {
		i.GateStatus = make(map[string]GateStatus)
	}
}

// Clone returns a deep copy so callers can mutate without aliasing snapshot data.
func (i *Issue) Clone() *Issue {
	c := *i
	c.Dependencies = slices.Clone(i.Dependencies)
	c.RequiredGates = slices.Clone(i.RequiredGates)
	c.Labels = slices.Clone(i.Labels)
	c.DocRefs = slices.Clone(i.DocRefs)
	if i.GateStatus != nil {
		c.GateStatus = make(map[string]GateStatus, len(i.GateStatus))
		for k, v := range i.GateStatus {
			c.GateStatus[k] = v
		}
	}
	if i.ClosedAt != nil {
		t := *i.ClosedAt
		c.ClosedAt = &t
	}
	return &c
}

// HasDependency reports whether id is in the issue's direct dependency set.
func (i *Issue) HasDependency(id string) bool {
	return slices.Contains(i.Dependencies, id)
}

// RequiresGate reports whether key is one of the issue's required gates.
func (i *Issue) RequiresGate(key string) bool {
	return slices.Contains(i.RequiredGates, key)
}

// HasLabel reports whether the issue carries the exact label.
func (i *Issue) HasLabel(label string) bool {
	return slices.Contains(i.Labels, label)
}

// LabelsInNamespace returns the values of all labels in namespace ns.
func (i *Issue) LabelsInNamespace(ns string) []string {
	var values []string
	for _, l := range i.Labels {
		if lns, v, ok := SplitLabel(l); ok && lns == ns {
			values = append(values, v)
		}
	}
	return values
}

// SplitLabel splits "ns:value" into its parts. Labels without a namespace
// separator are not namespaced.
func SplitLabel(label string) (ns, value string, ok bool) {
	ns, value, ok = strings.Cut(label, ":")
	if !ok || ns == "" || value == "" {
		return "", "", false
	}
	return ns, value, true
}

// State represents the lifecycle state of an issue
type State string

// Issue state constants
const (
	StateBacklog    State = "backlog"
	StateReady      State = "ready"
	StateInProgress State = "in_progress"
	StateGated      State = "gated"
	StateDone       State = "done"
	StateRejected   State = "rejected"
)

// IsValid checks if the state value is valid
func (s State) IsValid() bool {
	switch s {
	case StateBacklog, StateReady, StateInProgress, StateGated, StateDone, StateRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further lifecycle transitions apply.
// Done can still be reopened explicitly.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateRejected
}

// ParseState accepts the canonical names plus a few common spellings.
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "backlog":
		return StateBacklog, nil
	case "ready":
		return StateReady, nil
	case "in_progress", "in-progress", "inprogress":
		return StateInProgress, nil
	case "gated":
		return StateGated, nil
	case "done":
		return StateDone, nil
	case "rejected":
		return StateRejected, nil
	}
	return "", fmt.Errorf("invalid state %q", s)
}

// IssueType categorizes the kind of work
type IssueType string

// Issue type constants
const (
	TypeBug     IssueType = "bug"
	TypeFeature IssueType = "feature"
	TypeTask    IssueType = "task"
	TypeEpic    IssueType = "epic"
	TypeChore   IssueType = "chore"
)

// IsValid checks if the issue type value is valid
func (t IssueType) IsValid() bool {
	switch t {
	case TypeBug, TypeFeature, TypeTask, TypeEpic, TypeChore:
		return true
	}
	return false
}

// EventType categorizes audit trail events
type EventType string

// Event type constants for audit trail
const (
	EventCreated           EventType = "created"
	EventUpdated           EventType = "updated"
	EventDeleted           EventType = "deleted"
	EventStateChanged      EventType = "state_changed"
	EventClaimed           EventType = "claimed"
	EventReleased          EventType = "released"
	EventDependencyAdded   EventType = "dependency_added"
	EventDependencyRemoved EventType = "dependency_removed"
	EventDependencyPruned  EventType = "dependency_pruned" // Dropped by transitive reduction
	EventGateAdded         EventType = "gate_added"
	EventGatePassed        EventType = "gate_passed"
	EventGateFailed        EventType = "gate_failed"
	EventLabelAdded        EventType = "label_added"
	EventLabelRemoved      EventType = "label_removed"
)

// Event is one append-only audit trail record
type Event struct {
	ID        string    `json:"id"`
	IssueID   string    `json:"issue_id"`
	EventType EventType `json:"event_type"`
	Actor     string    `json:"actor"`
	OldValue  *string   `json:"old_value,omitempty"`
	NewValue  *string   `json:"new_value,omitempty"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LabelNamespace describes validation rules for labels sharing a prefix.
type LabelNamespace struct {
	Name        string   `json:"name"`
	Unique      bool     `json:"unique,omitempty"` // At most one label from this namespace per issue
	Values      []string `json:"values,omitempty"` // Allowed values; empty means any
	Description string   `json:"description,omitempty"`
}

// Worker is a capacity-bounded assignee used by the dispatcher.
type Worker struct {
	ID       string `json:"id" mapstructure:"id"`
	Capacity int    `json:"capacity" mapstructure:"capacity"`
	Command  string `json:"command,omitempty" mapstructure:"command"`
}

// StrPtr is a helper for optional event fields.
func StrPtr(s string) *string {
	return &s
}
