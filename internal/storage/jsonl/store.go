// Package jsonl implements storage.Store on top of git-friendly JSONL files in
// a control directory (normally .weft/).
//
// Layout:
//
//	issues.jsonl     one issue per line, creation order (rewritten atomically)
//	gates.jsonl      gate definitions (rewritten atomically)
//	namespaces.json  label namespaces (rewritten atomically)
//	events.jsonl     audit trail (append-only)
//	gate-runs.jsonl  gate run results (append-only)
//	.lock            flock target coordinating every process and worktree
//
// Each Update holds an exclusive lock for its whole load-mutate-save cycle, so
// concurrent claims from different processes are serialized and at most one
// of them can win.
package jsonl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gofrs/flock"

	"github.com/steveyegge/weft/internal/debug"
	jsonlfile "github.com/steveyegge/weft/internal/jsonl"
	"github.com/steveyegge/weft/internal/storage"
	"github.com/steveyegge/weft/internal/types"
)

const (
	IssuesFile     = "issues.jsonl"
	GatesFile      = "gates.jsonl"
	NamespacesFile = "namespaces.json"
	EventsFile     = "events.jsonl"
	GateRunsFile   = "gate-runs.jsonl"
	LockFile       = ".lock"

	// DefaultLockTimeout is the maximum time to wait for the lock before giving up
	DefaultLockTimeout = 30 * time.Second
)

// Append hooks for the audit and gate run logs; tests swap them to inject
// failures.
var (
	appendGateRuns = jsonlfile.AppendFile[*types.GateRunResult]
	appendEvents   = jsonlfile.AppendFile[*types.Event]
)

// ErrLockTimeout is returned when the control directory lock cannot be taken
// within the configured timeout.
var ErrLockTimeout = errors.New("timed out waiting for control directory lock")

// Options configures a Store.
type Options struct {
	// LockTimeout bounds lock acquisition. Zero means try once; negative uses
	// DefaultLockTimeout.
	LockTimeout time.Duration
}

// Store is a storage.Store backed by files in dir.
type Store struct {
	dir         string
	lockTimeout time.Duration
}

var _ storage.Store = (*Store)(nil)

// Open returns a store for an existing control directory.
func Open(dir string, opts Options) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("open control directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("open control directory: %s is not a directory", dir)
	}
	timeout := opts.LockTimeout
	if timeout < 0 {
		timeout = DefaultLockTimeout
	}
	return &Store{dir: dir, lockTimeout: timeout}, nil
}

// Init creates dir if needed and opens it.
func Init(dir string, opts Options) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create control directory: %w", err)
	}
	return Open(dir, opts)
}

// Dir returns the control directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.withLock(ctx, true, func() error {
		snap, err := s.load()
		if err != nil {
			return err
		}
		tx := storage.NewSnapshotTx(snap, false)
		if err := fn(tx); err != nil {
			return err
		}
		return s.persist(snap, tx.Changes())
	})
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.withLock(ctx, false, func() error {
		snap, err := s.load()
		if err != nil {
			return err
		}
		return fn(storage.NewSnapshotTx(snap, true))
	})
}

func (s *Store) Close() error {
	return nil
}

// withLock runs fn holding the directory lock. A fresh flock handle is used
// per call so that goroutines in one process exclude each other the same way
// separate processes do.
func (s *Store) withLock(ctx context.Context, exclusive bool, fn func() error) error {
	fl := flock.New(s.path(LockFile))
	lockType := "shared"
	tryLock := fl.TryRLock
	if exclusive {
		lockType = "exclusive"
		tryLock = fl.TryLock
	}

	start := time.Now()
	attempt := func() error {
		locked, err := tryLock()
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to acquire %s lock: %w", lockType, err))
		}
		if !locked {
			return ErrLockTimeout
		}
		return nil
	}

	var err error
	if s.lockTimeout == 0 {
		err = attempt()
	} else {
		bo := backoff.NewExponentialBackOff()
		bo.InitialInterval = 10 * time.Millisecond
		bo.MaxInterval = 250 * time.Millisecond
		bo.MaxElapsedTime = s.lockTimeout
		err = backoff.Retry(attempt, backoff.WithContext(bo, ctx))
	}
	if err != nil {
		if errors.Is(err, ErrLockTimeout) {
			return fmt.Errorf("%w after %v (another process may be writing - try again in a moment)",
				ErrLockTimeout, time.Since(start).Round(time.Millisecond))
		}
		return err
	}
	debug.Logf("acquired %s lock after %v: %s\n", lockType, time.Since(start), fl.Path())
	defer func() {
		_ = fl.Unlock()
		debug.Logf("released %s lock: %s\n", lockType, fl.Path())
	}()

	return fn()
}

func (s *Store) load() (*storage.Snapshot, error) {
	snap := storage.NewSnapshot()

	issues, err := jsonlfile.ReadFile[*types.Issue](s.path(IssuesFile))
	if err != nil {
		return nil, fmt.Errorf("load issues: %w", err)
	}
	issues, removed := jsonlfile.Deduplicate(issues)
	if len(removed) > 0 {
		debug.Logf("collapsed %d duplicate issue records\n", len(removed))
	}
	for _, issue := range issues {
		issue.SetDefaults()
		snap.Issues[issue.ID] = issue
		if issue.Seq > snap.MaxSeq {
			snap.MaxSeq = issue.Seq
		}
	}

	gates, err := jsonlfile.ReadFile[*types.Gate](s.path(GatesFile))
	if err != nil {
		return nil, fmt.Errorf("load gates: %w", err)
	}
	for _, g := range gates {
		snap.Gates[g.Key] = g
	}

	namespaces, err := readNamespaces(s.path(NamespacesFile))
	if err != nil {
		return nil, fmt.Errorf("load label namespaces: %w", err)
	}
	for _, ns := range namespaces {
		snap.Namespaces[ns.Name] = ns
	}

	if snap.Events, err = jsonlfile.ReadFile[*types.Event](s.path(EventsFile)); err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	if snap.GateRuns, err = jsonlfile.ReadFile[*types.GateRunResult](s.path(GateRunsFile)); err != nil {
		return nil, fmt.Errorf("load gate runs: %w", err)
	}

	debug.Logf("loaded %d issues, %d gates, %d events from %s\n", len(snap.Issues), len(snap.Gates), len(snap.Events), s.dir)
	return snap, nil
}

// persist writes the files touched by a transaction. Append-only logs are
// written last so a crash mid-commit never records events for state that was
// not saved. Once a state file has been replaced the commit has landed, and
// any later failure is reported wrapped in storage.ErrPartialCommit.
func (s *Store) persist(snap *storage.Snapshot, changes *storage.Changes) error {
	saved := false
	fail := func(what string, err error) error {
		if saved {
			return fmt.Errorf("%s: %w: %w", what, storage.ErrPartialCommit, err)
		}
		return fmt.Errorf("%s: %w", what, err)
	}
	if changes.Issues {
		issues := make([]*types.Issue, 0, len(snap.Issues))
		for _, issue := range snap.Issues {
			issues = append(issues, issue)
		}
		types.SortIssues(issues, types.SortFieldCreated, false)
		if err := jsonlfile.WriteFileAtomic(s.path(IssuesFile), issues); err != nil {
			return fail("save issues", err)
		}
		saved = true
	}
	if changes.Gates {
		gates := make([]*types.Gate, 0, len(snap.Gates))
		for _, g := range snap.Gates {
			gates = append(gates, g)
		}
		sort.Slice(gates, func(i, j int) bool { return gates[i].Key < gates[j].Key })
		if err := jsonlfile.WriteFileAtomic(s.path(GatesFile), gates); err != nil {
			return fail("save gates", err)
		}
		saved = true
	}
	if changes.Namespaces {
		namespaces := make([]*types.LabelNamespace, 0, len(snap.Namespaces))
		for _, ns := range snap.Namespaces {
			namespaces = append(namespaces, ns)
		}
		sort.Slice(namespaces, func(i, j int) bool { return namespaces[i].Name < namespaces[j].Name })
		if err := jsonlfile.WriteJSONAtomic(s.path(NamespacesFile), namespaces); err != nil {
			return fail("save label namespaces", err)
		}
		saved = true
	}
	if err := appendGateRuns(s.path(GateRunsFile), changes.GateRuns); err != nil {
		return fail("append gate runs", err)
	}
	if len(changes.GateRuns) > 0 {
		saved = true
	}
	if err := appendEvents(s.path(EventsFile), changes.Events); err != nil {
		return fail("append events", err)
	}
	return nil
}
