package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/steveyegge/weft/internal/types"
)

// Launcher starts a worker's command for each new assignment. The command
// runs through sh -c with the issue JSON on stdin and WEFT_ISSUE_ID and
// WEFT_WORKER_ID in the environment. Launches are fire-and-forget; the exit
// status is only logged.
type Launcher struct {
	// Dir is the working directory of launched commands. Empty means the
	// current directory.
	Dir    string
	Logger *slog.Logger
	// Output receives combined stdout/stderr. Nil discards it.
	Output io.Writer

	mu sync.Mutex
	wg sync.WaitGroup
}

// Launch starts worker.Command for issue. Workers without a command are
// skipped. It matches AssignFunc.
func (l *Launcher) Launch(ctx context.Context, worker types.Worker, issue *types.Issue) {
	if worker.Command == "" {
		return
	}
	logger := l.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	payload, err := json.Marshal(issue)
	if err != nil {
		logger.Error("launch: encode issue", "issue", issue.ID, "error", err)
		return
	}

	// The launched worker outlives the dispatch cycle that started it.
	// #nosec G204 -- command comes from the dispatcher configuration
	cmd := exec.CommandContext(context.WithoutCancel(ctx), "sh", "-c", worker.Command)
	cmd.Dir = l.Dir
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Env = append(os.Environ(),
		"WEFT_ISSUE_ID="+issue.ID,
		"WEFT_ISSUE_TITLE="+issue.Title,
		"WEFT_WORKER_ID="+worker.ID,
	)
	if l.Output != nil {
		w := &lockedWriter{w: l.Output, mu: &l.mu}
		cmd.Stdout = w
		cmd.Stderr = w
	}

	if err := cmd.Start(); err != nil {
		logger.Error("launch failed", "issue", issue.ID, "worker", worker.ID, "error", err)
		return
	}
	logger.Info("worker launched", "issue", issue.ID, "worker", worker.ID, "pid", cmd.Process.Pid)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := cmd.Wait(); err != nil {
			logger.Warn("worker command exited", "issue", issue.ID, "worker", worker.ID, "error", err)
			return
		}
		logger.Debug("worker command finished", "issue", issue.ID, "worker", worker.ID)
	}()
}

// Wait blocks until every launched command has exited.
func (l *Launcher) Wait() {
	l.wg.Wait()
}

// lockedWriter serializes writes from concurrently running commands.
type lockedWriter struct {
	w  io.Writer
	mu *sync.Mutex
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}
