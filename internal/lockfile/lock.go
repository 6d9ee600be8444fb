// Package lockfile guards singleton processes in the control directory.
// The dispatcher holds an exclusive flock on .weft/dispatch.lock for as long
// as its poll loop runs; the file body records who holds it.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/weft/internal/debug"
)

// DispatchLockFile is the lock file name inside the control directory.
const DispatchLockFile = "dispatch.lock"

// ErrLockBusy is returned when another process holds the lock.
var ErrLockBusy = errors.New("lock held by another process")

// LockInfo is written into the lock file by the holder.
type LockInfo struct {
	PID       int       `json:"pid"`
	ParentPID int       `json:"parent_pid,omitempty"`
	Dir       string    `json:"dir"`
	Actor     string    `json:"actor,omitempty"`
	Workers   []string  `json:"workers,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Alive reports whether the recorded process still runs.
func (i *LockInfo) Alive() bool {
	return isProcessRunning(i.PID)
}

// BusyError reports the current holder of a lock.
type BusyError struct {
	Holder *LockInfo // nil when the lock file could not be read
}

func (e *BusyError) Error() string {
	if e.Holder == nil {
		return "dispatcher already running"
	}
	return fmt.Sprintf("dispatcher already running (pid %d since %s)",
		e.Holder.PID, e.Holder.StartedAt.Format(time.RFC3339))
}

func (e *BusyError) Unwrap() error { return ErrLockBusy }

// Lock is a held dispatch lock.
type Lock struct {
	f    *os.File
	path string
}

// Acquire takes the dispatch lock in dir without blocking. When another
// process holds it the error is a *BusyError wrapping ErrLockBusy.
func Acquire(dir string, info LockInfo) (*Lock, error) {
	path := filepath.Join(dir, DispatchLockFile)
	// #nosec G304 - lock file in control directory
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := FlockExclusiveNonBlocking(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLockBusy) {
			holder, _ := ReadLockInfo(dir)
			return nil, &BusyError{Holder: holder}
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	if info.PID == 0 {
		info.PID = os.Getpid()
		info.ParentPID = os.Getppid()
	}
	if info.Dir == "" {
		info.Dir = dir
	}
	if info.StartedAt.IsZero() {
		info.StartedAt = time.Now().UTC()
	}
	if err := writeInfo(f, &info); err != nil {
		_ = FlockUnlock(f)
		_ = f.Close()
		return nil, err
	}
	debug.Logf("lockfile: acquired %s (pid %d)\n", path, info.PID)
	return &Lock{f: f, path: path}, nil
}

func writeInfo(f *os.File, info *LockInfo) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(info); err != nil {
		return err
	}
	return f.Sync()
}

// Release clears the holder record and drops the lock. The file itself is
// left in place so that a concurrent Acquire never locks an unlinked inode.
func (l *Lock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	_ = l.f.Truncate(0)
	err := FlockUnlock(l.f)
	if cerr := l.f.Close(); err == nil {
		err = cerr
	}
	l.f = nil
	debug.Logf("lockfile: released %s\n", l.path)
	return err
}

// ReadLockInfo reads the holder record from dir. A bare PID is accepted as
// well as the JSON form.
func ReadLockInfo(dir string) (*LockInfo, error) {
	data, err := os.ReadFile(filepath.Join(dir, DispatchLockFile)) // #nosec G304 - lock file in control directory
	if err != nil {
		return nil, err
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err == nil {
		return &info, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("invalid lock file format: %q", strings.TrimSpace(string(data)))
	}
	return &LockInfo{PID: pid}, nil
}

// Status reports whether the dispatch lock in dir is held, and by whom.
func Status(dir string) (bool, *LockInfo, error) {
	path := filepath.Join(dir, DispatchLockFile)
	f, err := os.OpenFile(path, os.O_RDWR, 0) // #nosec G304 - lock file in control directory
	if errors.Is(err, os.ErrNotExist) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, err
	}
	defer f.Close()

	if err := FlockExclusiveNonBlocking(f); err != nil {
		if errors.Is(err, ErrLockBusy) {
			info, _ := ReadLockInfo(dir)
			return true, info, nil
		}
		return false, nil, err
	}
	_ = FlockUnlock(f)
	return false, nil, nil
}
