// Package memory implements an in-process storage.Store. It is used by tests
// and by callers that want scheduler semantics without a control directory.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/steveyegge/weft/internal/storage"
)

var errClosed = errors.New("memory store is closed")

// Store keeps one resident snapshot. Update works on a clone and swaps it in
// on success, so a failed callback leaves no trace.
type Store struct {
	mu     sync.RWMutex
	snap   *storage.Snapshot
	closed bool
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{snap: storage.NewSnapshot()}
}

// NewFromSnapshot returns a store seeded with snap.
func NewFromSnapshot(snap *storage.Snapshot) *Store {
	return &Store{snap: snap.Clone()}
}

func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}

	work := s.snap.Clone()
	tx := storage.NewSnapshotTx(work, false)
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.Changes().Empty() {
		s.snap = work
	}
	return nil
}

func (s *Store) View(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errClosed
	}
	return fn(storage.NewSnapshotTx(s.snap, true))
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() *storage.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Clone()
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
