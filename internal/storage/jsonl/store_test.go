package jsonl

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/weft/internal/storage"
	"github.com/steveyegge/weft/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Init(filepath.Join(t.TempDir(), ".weft"), Options{LockTimeout: 5 * time.Second})
	require.NoError(t, err)
	return s
}

func newIssue(id string) *types.Issue {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &types.Issue{
		ID:         id,
		Title:      "Issue " + id,
		IssueType:  types.TypeTask,
		State:      types.StateBacklog,
		Priority:   types.PriorityNormal,
		GateStatus: map[string]types.GateStatus{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestRoundTripPreservesIssue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	issue := newIssue("wf-abc1")
	issue.State = types.StateGated
	issue.Priority = types.PriorityCritical
	issue.Assignee = "agent-1"
	issue.Dependencies = []string{"wf-dep2", "wf-dep1"}
	issue.RequiredGates = []string{"tests", "review"}
	issue.GateStatus = map[string]types.GateStatus{"tests": types.GatePassed, "review": types.GateFailed}
	issue.Labels = []string{"area:core"}

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.SaveIssue(ctx, issue)
	}))

	// Reopen from disk with a new handle.
	s2, err := Open(s.Dir(), Options{})
	require.NoError(t, err)

	var got *types.Issue
	require.NoError(t, s2.View(ctx, func(tx storage.Tx) error {
		var err error
		got, err = tx.LoadIssue(ctx, "wf-abc1")
		return err
	}))

	assert.Equal(t, "wf-abc1", got.ID)
	assert.Equal(t, types.StateGated, got.State)
	assert.Equal(t, types.PriorityCritical, got.Priority)
	assert.Equal(t, []string{"wf-dep2", "wf-dep1"}, got.Dependencies)
	assert.Equal(t, issue.GateStatus, got.GateStatus)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, int64(1), got.Revision)
}

func TestFailedUpdateWritesNothing(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx storage.Tx) error {
		if err := tx.SaveIssue(ctx, newIssue("wf-aaaa")); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, &types.Event{ID: "e1", IssueID: "wf-aaaa"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, statErr := os.Stat(filepath.Join(s.Dir(), IssuesFile))
	assert.True(t, os.IsNotExist(statErr), "issues file should not exist")
	_, statErr = os.Stat(filepath.Join(s.Dir(), EventsFile))
	assert.True(t, os.IsNotExist(statErr), "events file should not exist")
}

func TestViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	err := s.View(ctx, func(tx storage.Tx) error {
		return tx.SaveIssue(ctx, newIssue("wf-aaaa"))
	})
	require.ErrorIs(t, err, storage.ErrReadOnly)
}

func TestAppendOnlyLogs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for i, id := range []string{"e1", "e2"} {
		run := &types.GateRunResult{RunID: "run-" + id, IssueID: "wf-aaaa", GateKey: "tests", Outcome: types.GatePassed}
		require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
			if err := tx.AppendEvent(ctx, &types.Event{ID: id, IssueID: "wf-aaaa", EventType: types.EventGatePassed}); err != nil {
				return err
			}
			return tx.SaveGateRun(ctx, run)
		}), "update %d", i)
	}

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		events, err := tx.ListEvents(ctx, "wf-aaaa")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "e1", events[0].ID)
		assert.Equal(t, "e2", events[1].ID)

		runs, err := tx.ListGateRuns(ctx, "wf-aaaa")
		require.NoError(t, err)
		assert.Len(t, runs, 2)

		run, err := tx.LoadGateRun(ctx, "run-e2")
		require.NoError(t, err)
		assert.Equal(t, "tests", run.GateKey)
		return nil
	}))
}

func TestGatesAndNamespacesPersist(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		if err := tx.SaveGate(ctx, &types.Gate{
			Key: "tests", Stage: types.StagePostcheck, Mode: types.GateModeAuto,
			Checker: types.ExecChecker{Command: "make test", Timeout: time.Minute},
		}); err != nil {
			return err
		}
		return tx.SaveLabelNamespace(ctx, &types.LabelNamespace{Name: "area", Unique: true})
	}))

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		g, err := tx.LoadGate(ctx, "tests")
		require.NoError(t, err)
		ec, ok := g.Checker.(types.ExecChecker)
		require.True(t, ok, "checker variant lost: %T", g.Checker)
		assert.Equal(t, time.Minute, ec.Timeout)

		nss, err := tx.LabelNamespaces(ctx)
		require.NoError(t, err)
		require.Len(t, nss, 1)
		assert.True(t, nss[0].Unique)
		return nil
	}))
}

// Two stores on the same directory model two processes or worktrees.
// Each claims the same issue under the exclusive lock; exactly one must win.
func TestConcurrentClaimAcrossHandles(t *testing.T) {
	ctx := context.Background()
	s1 := newTestStore(t)
	s2, err := Open(s1.Dir(), Options{LockTimeout: 5 * time.Second})
	require.NoError(t, err)

	ready := newIssue("wf-race")
	ready.State = types.StateReady
	require.NoError(t, s1.Update(ctx, func(tx storage.Tx) error { return tx.SaveIssue(ctx, ready) }))

	claim := func(s *Store, actor string) error {
		return s.Update(ctx, func(tx storage.Tx) error {
			issue, err := tx.LoadIssue(ctx, "wf-race")
			if err != nil {
				return err
			}
			if issue.Assignee != "" {
				return types.ErrAlreadyAssigned
			}
			issue.Assignee = actor
			issue.State = types.StateInProgress
			return tx.SaveIssue(ctx, issue)
		})
	}

	var wg sync.WaitGroup
	var wins, losses atomic.Int32
	for i, s := range []*Store{s1, s2, s1, s2} {
		wg.Add(1)
		go func(i int, s *Store) {
			defer wg.Done()
			err := claim(s, "agent-"+string(rune('a'+i)))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, types.ErrAlreadyAssigned):
				losses.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i, s)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(3), losses.Load())
}

func TestLockTimeout(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	impatient, err := Open(s.Dir(), Options{LockTimeout: 50 * time.Millisecond})
	require.NoError(t, err)

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.Update(ctx, func(tx storage.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	err = impatient.Update(ctx, func(tx storage.Tx) error { return nil })
	close(release)
	require.ErrorIs(t, err, ErrLockTimeout)
	require.NoError(t, <-done)
}

func TestSeqIsMonotonic(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, id := range []string{"wf-aaaa", "wf-bbbb", "wf-cccc"} {
		require.NoError(t, s.Update(ctx, func(tx storage.Tx) error { return tx.SaveIssue(ctx, newIssue(id)) }))
	}
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error { return tx.DeleteIssue(ctx, "wf-cccc") }))
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error { return tx.SaveIssue(ctx, newIssue("wf-dddd")) }))

	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		issues, err := tx.ListIssues(ctx)
		require.NoError(t, err)
		require.Len(t, issues, 3)
		assert.Equal(t, "wf-aaaa", issues[0].ID)
		assert.Equal(t, "wf-dddd", issues[2].ID)
		assert.Greater(t, issues[2].Seq, issues[1].Seq)
		return nil
	}))
}

func TestLogAppendFailureAfterSaveIsPartialCommit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	prev := appendEvents
	t.Cleanup(func() { appendEvents = prev })
	appendEvents = func(string, []*types.Event) error { return errors.New("disk full") }

	issue := newIssue("wf-abc1")
	err := s.Update(ctx, func(tx storage.Tx) error {
		if err := tx.SaveIssue(ctx, issue); err != nil {
			return err
		}
		return tx.AppendEvent(ctx, &types.Event{IssueID: issue.ID, EventType: types.EventCreated, Actor: "tester"})
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrPartialCommit)

	// The state change landed even though the log did not.
	require.NoError(t, s.View(ctx, func(tx storage.Tx) error {
		got, err := tx.LoadIssue(ctx, "wf-abc1")
		if err != nil {
			return err
		}
		assert.Equal(t, "wf-abc1", got.ID)
		evs, err := tx.ListEvents(ctx, "")
		assert.Empty(t, evs)
		return err
	}))

	// A failing append with no state change is an ordinary error.
	err = s.Update(ctx, func(tx storage.Tx) error {
		return tx.AppendEvent(ctx, &types.Event{IssueID: issue.ID, EventType: types.EventCreated, Actor: "tester"})
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrPartialCommit)
}
