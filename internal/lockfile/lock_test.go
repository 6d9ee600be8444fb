//go:build unix

package lockfile

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReadLockInfo(t *testing.T) {
	tmpDir := t.TempDir()
	lockPath := filepath.Join(tmpDir, DispatchLockFile)

	t.Run("JSON format", func(t *testing.T) {
		lockInfo := &LockInfo{
			PID:       12345,
			ParentPID: 1,
			Dir:       "/path/to/.weft",
			Workers:   []string{"w1", "w2"},
			StartedAt: time.Now(),
		}

		data, err := json.Marshal(lockInfo)
		if err != nil {
			t.Fatalf("failed to marshal lock info: %v", err)
		}

		if err := os.WriteFile(lockPath, data, 0644); err != nil {
			t.Fatalf("failed to write lock file: %v", err)
		}

		result, err := ReadLockInfo(tmpDir)
		if err != nil {
			t.Fatalf("ReadLockInfo failed: %v", err)
		}

		if result.PID != lockInfo.PID {
			t.Errorf("PID mismatch: got %d, want %d", result.PID, lockInfo.PID)
		}

		if result.Dir != lockInfo.Dir {
			t.Errorf("Dir mismatch: got %s, want %s", result.Dir, lockInfo.Dir)
		}
	})

	t.Run("plain PID", func(t *testing.T) {
		if err := os.WriteFile(lockPath, []byte("98765\n"), 0644); err != nil {
			t.Fatalf("failed to write lock file: %v", err)
		}

		result, err := ReadLockInfo(tmpDir)
		if err != nil {
			t.Fatalf("ReadLockInfo failed: %v", err)
		}

		if result.PID != 98765 {
			t.Errorf("PID mismatch: got %d, want %d", result.PID, 98765)
		}
	})

	t.Run("file not found", func(t *testing.T) {
		_, err := ReadLockInfo(filepath.Join(tmpDir, "nonexistent"))
		if err == nil {
			t.Error("expected error for non-existent file")
		}
	})

	t.Run("invalid format", func(t *testing.T) {
		if err := os.WriteFile(lockPath, []byte("invalid json"), 0644); err != nil {
			t.Fatalf("failed to write lock file: %v", err)
		}

		_, err := ReadLockInfo(tmpDir)
		if err == nil {
			t.Error("expected error for invalid format")
		}
	})
}

func TestAcquire(t *testing.T) {
	tmpDir := t.TempDir()

	lock, err := Acquire(tmpDir, LockInfo{Workers: []string{"w1"}})
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	info, err := ReadLockInfo(tmpDir)
	if err != nil {
		t.Fatalf("ReadLockInfo failed: %v", err)
	}
	if info.PID != os.Getpid() {
		t.Errorf("expected holder pid %d, got %d", os.Getpid(), info.PID)
	}
	if !info.Alive() {
		t.Error("expected holder to be alive")
	}

	// flock locks belong to the open file description, so a second open in
	// this process conflicts like another process would.
	_, err = Acquire(tmpDir, LockInfo{})
	if !errors.Is(err, ErrLockBusy) {
		t.Fatalf("expected ErrLockBusy, got %v", err)
	}
	var busy *BusyError
	if !errors.As(err, &busy) || busy.Holder == nil || busy.Holder.PID != os.Getpid() {
		t.Errorf("expected BusyError naming this process, got %v", err)
	}

	held, holder, err := Status(tmpDir)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !held || holder == nil {
		t.Error("expected Status to report the lock as held")
	}

	if err := lock.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release should be a no-op, got %v", err)
	}

	held, _, err = Status(tmpDir)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if held {
		t.Error("expected lock to be free after Release")
	}

	again, err := Acquire(tmpDir, LockInfo{})
	if err != nil {
		t.Fatalf("re-Acquire failed: %v", err)
	}
	_ = again.Release()
}

func TestStatusWithoutLockFile(t *testing.T) {
	held, info, err := Status(t.TempDir())
	if err != nil || held || info != nil {
		t.Errorf("Status() = %v, %v, %v; want false, nil, nil", held, info, err)
	}
}

func TestFlockFunctions(t *testing.T) {
	t.Run("FlockExclusiveBlocking and FlockUnlock", func(t *testing.T) {
		lockPath := filepath.Join(t.TempDir(), "test.lock")

		if err := os.WriteFile(lockPath, []byte("test"), 0644); err != nil {
			t.Fatalf("failed to create lock file: %v", err)
		}

		f, err := os.OpenFile(lockPath, os.O_RDWR, 0644)
		if err != nil {
			t.Fatalf("failed to open lock file: %v", err)
		}
		defer f.Close()

		if err := FlockExclusiveBlocking(f); err != nil {
			t.Errorf("FlockExclusiveBlocking failed: %v", err)
		}

		if err := FlockUnlock(f); err != nil {
			t.Errorf("FlockUnlock failed: %v", err)
		}
	})

	t.Run("non-blocking fails while held", func(t *testing.T) {
		lockPath := filepath.Join(t.TempDir(), "test.lock")

		if err := os.WriteFile(lockPath, []byte("test"), 0644); err != nil {
			t.Fatalf("failed to create lock file: %v", err)
		}

		f1, err := os.OpenFile(lockPath, os.O_RDWR, 0644)
		if err != nil {
			t.Fatalf("failed to open lock file: %v", err)
		}
		defer f1.Close()

		if err := FlockExclusiveBlocking(f1); err != nil {
			t.Fatalf("failed to acquire first lock: %v", err)
		}
		defer FlockUnlock(f1)

		f2, err := os.OpenFile(lockPath, os.O_RDWR, 0644)
		if err != nil {
			t.Fatalf("failed to open lock file again: %v", err)
		}
		defer f2.Close()

		if err := FlockExclusiveNonBlocking(f2); err != ErrLockBusy {
			t.Errorf("expected ErrLockBusy, got %v", err)
		}
	})
}

func TestIsProcessRunning(t *testing.T) {
	t.Run("current process is running", func(t *testing.T) {
		if !isProcessRunning(os.Getpid()) {
			t.Error("expected current process to be running")
		}
	})

	t.Run("invalid pid", func(t *testing.T) {
		if isProcessRunning(0) || isProcessRunning(-1) {
			t.Error("expected non-positive pids to be reported as not running")
		}
	})
}
