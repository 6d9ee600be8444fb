// Package storage defines the issue store contract shared by the memory and
// jsonl backends.
//
// Every mutation happens inside Store.Update: the backend takes an exclusive
// lock, loads a fresh snapshot, runs the callback against a Tx and writes the
// snapshot back only if the callback returns nil. This gives callers the atomic
// load-check-mutate-save primitive that claims and graph edits rely on.
package storage

import (
	"context"
	"errors"

	"github.com/steveyegge/weft/internal/types"
)

// ErrReadOnly is returned when a View transaction attempts a write.
var ErrReadOnly = errors.New("read-only transaction")

// ErrStaleRevision is returned by SaveIssue when the issue was loaded before a
// save of the same issue in the current transaction.
var ErrStaleRevision = errors.New("stale issue revision")

// ErrPartialCommit is returned when a transaction's state files were saved
// but a later write (the audit or gate run log) failed. The state change has
// landed and must not be retried blindly.
var ErrPartialCommit = errors.New("state saved but log append failed")

// Store is the interface satisfied by *memory.Store and *jsonl.Store.
type Store interface {
	// Update runs fn inside an exclusive critical section against a freshly
	// loaded snapshot. Changes are committed only when fn returns nil.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// View runs fn against a consistent snapshot under a shared lock.
	View(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx is the view of the store inside a single Update or View call.
// Issues returned by LoadIssue and ListIssues are copies; call SaveIssue to
// persist changes.
type Tx interface {
	// Issues
	LoadIssue(ctx context.Context, id string) (*types.Issue, error)
	SaveIssue(ctx context.Context, issue *types.Issue) error
	DeleteIssue(ctx context.Context, id string) error
	ListIssues(ctx context.Context) ([]*types.Issue, error)
	ResolveIssueID(ctx context.Context, prefix string) (string, error)
	NextSeq(ctx context.Context) int64

	// Audit trail (append-only)
	AppendEvent(ctx context.Context, event *types.Event) error
	ListEvents(ctx context.Context, issueID string) ([]*types.Event, error)

	// Gate definitions and run history
	LoadGate(ctx context.Context, key string) (*types.Gate, error)
	SaveGate(ctx context.Context, gate *types.Gate) error
	ListGates(ctx context.Context) ([]*types.Gate, error)
	SaveGateRun(ctx context.Context, run *types.GateRunResult) error
	LoadGateRun(ctx context.Context, runID string) (*types.GateRunResult, error)
	ListGateRuns(ctx context.Context, issueID string) ([]*types.GateRunResult, error)

	// Label namespaces
	LabelNamespaces(ctx context.Context) ([]*types.LabelNamespace, error)
	SaveLabelNamespace(ctx context.Context, ns *types.LabelNamespace) error
}
