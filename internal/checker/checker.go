// Package checker runs Exec gate checkers.
//
// A checker is a shell command run with "sh -c". Exit status 0 passes the
// gate; any other exit, a timeout or a failure to start fails it. The runner
// only produces GateRunResult records; recording them against an issue is the
// lifecycle's job.
package checker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/weft/internal/types"
)

// Default and max timeout for checker commands.
const (
	DefaultTimeout = 5 * time.Minute
	MaxTimeout     = time.Hour
)

// DefaultMaxOutput caps captured output per run.
const DefaultMaxOutput = 64 * 1024

// ErrNotExec is returned when asked to run a gate without an exec checker.
var ErrNotExec = errors.New("gate has no exec checker")

// Options configures a Runner.
type Options struct {
	// DefaultTimeout applies when a checker has no timeout of its own.
	DefaultTimeout time.Duration
	// MaxOutput caps the captured output in bytes. Zero means DefaultMaxOutput.
	MaxOutput int
	// WorkDir is used when a checker has no working directory.
	WorkDir string
	// Logger receives one line per run. Nil discards.
	Logger *slog.Logger
}

// Runner executes exec checkers.
type Runner struct {
	timeout   time.Duration
	maxOutput int
	workDir   string
	logger    *slog.Logger
	now       func() time.Time
}

// NewRunner creates a Runner.
func NewRunner(opts Options) *Runner {
	r := &Runner{
		timeout:   opts.DefaultTimeout,
		maxOutput: opts.MaxOutput,
		workDir:   opts.WorkDir,
		logger:    opts.Logger,
		now:       time.Now,
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.maxOutput <= 0 {
		r.maxOutput = DefaultMaxOutput
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Run executes the gate's checker for issue and returns the terminal outcome.
// A non-nil error means the gate could not be run at all (wrong checker kind,
// canceled context); command failures are reported as a failed result.
func (r *Runner) Run(ctx context.Context, issue *types.Issue, gate *types.Gate) (*types.GateRunResult, error) {
	ec, ok := gate.Checker.(types.ExecChecker)
	if !ok {
		return nil, fmt.Errorf("gate %s: %w", gate.Key, ErrNotExec)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := ec.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	tracer := otel.Tracer("github.com/steveyegge/weft/checker")
	runCtx, span := tracer.Start(ctx, "checker.exec",
		trace.WithAttributes(
			attribute.String("weft.issue_id", issue.ID),
			attribute.String("weft.gate", gate.Key),
			attribute.String("checker.command", ec.Command),
		),
	)
	defer span.End()

	runCtx, cancel := context.WithTimeout(runCtx, timeout)
	defer cancel()

	// #nosec G204 -- command comes from the gate definition in the control directory
	cmd := exec.Command("sh", "-c", ec.Command)
	cmd.Dir = r.workDir
	if ec.WorkDir != "" {
		cmd.Dir = ec.WorkDir
	}
	cmd.Env = r.environ(issue, gate, ec.Env)

	out := &capped{limit: r.maxOutput}
	cmd.Stdout = out
	cmd.Stderr = out

	result := &types.GateRunResult{
		IssueID:   issue.ID,
		GateKey:   gate.Key,
		Command:   ec.Command,
		StartedAt: r.now().UTC(),
	}

	err := runProcess(runCtx, cmd)
	result.FinishedAt = r.now().UTC()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.Output = out.String()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Outcome = types.GatePassed
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		result.Outcome = types.GateFailed
		result.ExitCode = -1
		result.Output = appendNote(result.Output, fmt.Sprintf("timed out after %s", timeout))
	case ctx.Err() != nil:
		span.SetStatus(codes.Error, "canceled")
		return nil, ctx.Err()
	case errors.As(err, &exitErr):
		result.Outcome = types.GateFailed
		result.ExitCode = exitErr.ExitCode()
	default:
		result.Outcome = types.GateFailed
		result.ExitCode = -1
		result.Output = appendNote(result.Output, err.Error())
	}

	span.SetAttributes(
		attribute.String("checker.outcome", string(result.Outcome)),
		attribute.Int("checker.exit_code", result.ExitCode),
	)
	if result.Outcome == types.GateFailed {
		span.SetStatus(codes.Error, "checker failed")
	}
	r.logger.Info("gate checker finished",
		"issue", issue.ID,
		"gate", gate.Key,
		"outcome", result.Outcome,
		"exit_code", result.ExitCode,
		"duration", result.Duration,
	)
	return result, nil
}

// RunAll runs the exec gates of issue concurrently, at most limit at a time
// (limit <= 0 means unbounded). Results are returned in gate order. Gates
// without an exec checker are skipped and leave a nil slot.
func (r *Runner) RunAll(ctx context.Context, issue *types.Issue, gates []*types.Gate, limit int) ([]*types.GateRunResult, error) {
	results := make([]*types.GateRunResult, len(gates))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, gate := range gates {
		if gate.Checker == nil || gate.Checker.Kind() != types.CheckerExec {
			continue
		}
		g.Go(func() error {
			res, err := r.Run(gctx, issue, gate)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// environ inherits the process environment and overlays issue context and
// the checker's own variables.
func (r *Runner) environ(issue *types.Issue, gate *types.Gate, extra map[string]string) []string {
	env := append(os.Environ(),
		"WEFT_ISSUE_ID="+issue.ID,
		"WEFT_ISSUE_TITLE="+issue.Title,
		"WEFT_ISSUE_PRIORITY="+issue.Priority.String(),
		"WEFT_ISSUE_STATE="+string(issue.State),
		"WEFT_GATE_KEY="+gate.Key,
		"WEFT_GATE_STAGE="+string(gate.Stage),
		"WEFT_SEQ="+strconv.FormatInt(issue.Seq, 10),
	)
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func appendNote(output, note string) string {
	if output == "" {
		return note
	}
	return output + "\n" + note
}

// capped is an io.Writer keeping only the first limit bytes.
type capped struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *capped) Write(p []byte) (int, error) {
	if room := c.limit - c.buf.Len(); room > 0 {
		if len(p) > room {
			c.buf.Write(p[:room])
			c.truncated = true
		} else {
			c.buf.Write(p)
		}
	} else if len(p) > 0 {
		c.truncated = true
	}
	return len(p), nil
}

func (c *capped) String() string {
	s := string(bytes.TrimRight(c.buf.Bytes(), "\n"))
	if c.truncated {
		s += "\n[output truncated]"
	}
	return s
}
