// Package dispatch assigns Ready issues to a pool of capacity-bounded
// workers in priority order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/steveyegge/weft/internal/lifecycle"
	"github.com/steveyegge/weft/internal/telemetry"
	"github.com/steveyegge/weft/internal/types"
)

const (
	// DefaultPollInterval is the default interval between dispatch cycles.
	DefaultPollInterval = 30 * time.Second

	// DefaultActor is recorded on claims made by the dispatcher.
	DefaultActor = "weft-dispatch"

	meterScope = "github.com/steveyegge/weft/dispatch"
)

// Config holds the dispatcher configuration.
type Config struct {
	// Workers in assignment preference order.
	Workers []types.Worker
	// PollInterval is how often Run starts a cycle.
	PollInterval time.Duration
	// Actor is recorded on the claims. Empty means DefaultActor.
	Actor string
}

// Validate checks worker IDs are set and unique and capacities positive.
func (c Config) Validate() error {
	seen := make(map[string]bool, len(c.Workers))
	for i, w := range c.Workers {
		if w.ID == "" {
			return fmt.Errorf("worker %d: id is required", i)
		}
		if seen[w.ID] {
			return fmt.Errorf("worker %s listed twice", w.ID)
		}
		seen[w.ID] = true
		if w.Capacity <= 0 {
			return fmt.Errorf("worker %s: capacity must be positive, got %d", w.ID, w.Capacity)
		}
	}
	return nil
}

// AssignFunc is called after an issue was claimed for a worker.
type AssignFunc func(ctx context.Context, worker types.Worker, issue *types.Issue)

// Options are the optional collaborators of a Dispatcher.
type Options struct {
	Logger *slog.Logger
	// OnAssign runs after each successful assignment, e.g. Launcher.Launch.
	OnAssign AssignFunc
	// Meter records dispatch metrics. Nil means the global meter.
	Meter metric.Meter
}

// Dispatcher runs dispatch cycles against a lifecycle service.
type Dispatcher struct {
	svc      *lifecycle.Service
	config   Config
	logger   *slog.Logger
	onAssign AssignFunc

	assigned metric.Int64Counter
	failed   metric.Int64Counter
	cycleDur metric.Float64Histogram
}

// New creates a Dispatcher.
func New(svc *lifecycle.Service, config Config, opts Options) *Dispatcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.Actor == "" {
		config.Actor = DefaultActor
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	m := opts.Meter
	if m == nil {
		m = telemetry.Meter(meterScope)
	}
	assigned, _ := m.Int64Counter("weft.dispatch.assignments",
		metric.WithDescription("Issues assigned to workers"),
	)
	failed, _ := m.Int64Counter("weft.dispatch.failures",
		metric.WithDescription("Assignment attempts that failed"),
	)
	cycleDur, _ := m.Float64Histogram("weft.dispatch.cycle.duration",
		metric.WithDescription("Dispatch cycle duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	return &Dispatcher{
		svc:      svc,
		config:   config,
		logger:   logger,
		onAssign: opts.OnAssign,
		assigned: assigned,
		failed:   failed,
		cycleDur: cycleDur,
	}
}

// NextIssueToAssign returns the Ready, unassigned issue with the highest
// priority, oldest first among equals. It returns nil when there is none.
func (d *Dispatcher) NextIssueToAssign(ctx context.Context) (*types.Issue, error) {
	return d.next(ctx, nil)
}

func (d *Dispatcher) next(ctx context.Context, skip map[string]bool) (*types.Issue, error) {
	ready, err := d.svc.QueryReady(ctx)
	if err != nil {
		return nil, err
	}
	for _, issue := range ready {
		if issue.Assignee == "" && !skip[issue.ID] {
			return issue, nil
		}
	}
	return nil, nil
}

// RunDispatchCycle assigns issues until no Ready issue or no worker capacity
// is left. Workers are filled in configuration order. A failed assignment is
// logged and skipped. It returns the number of assignments made.
func (d *Dispatcher) RunDispatchCycle(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() {
		d.cycleDur.Record(ctx, float64(time.Since(start).Milliseconds()))
	}()

	loads := make(map[string]int, len(d.config.Workers))
	for _, w := range d.config.Workers {
		n, err := d.svc.WorkerLoad(ctx, w.ID)
		if err != nil {
			return 0, fmt.Errorf("load of worker %s: %w", w.ID, err)
		}
		loads[w.ID] = n
	}

	count := 0
	skip := make(map[string]bool)
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		worker, ok := d.spareWorker(loads)
		if !ok {
			break
		}
		issue, err := d.next(ctx, skip)
		if err != nil {
			return count, err
		}
		if issue == nil {
			break
		}

		claimed, err := d.claim(ctx, worker, issue)
		switch {
		case err == nil:
			loads[worker.ID]++
			count++
			d.assigned.Add(ctx, 1, metric.WithAttributes(attribute.String("weft.worker", worker.ID)))
			d.logger.Info("issue assigned", "issue", claimed.ID, "worker", worker.ID, "priority", claimed.Priority)
			if d.onAssign != nil {
				d.onAssign(ctx, worker, claimed)
			}
		case errors.Is(err, types.ErrCapacityExceeded):
			// Someone else filled the worker; retry the issue elsewhere.
			loads[worker.ID] = worker.Capacity
			d.logger.Warn("worker full", "worker", worker.ID, "error", err)
		default:
			skip[issue.ID] = true
			d.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("weft.worker", worker.ID)))
			d.logger.Warn("assignment failed", "issue", issue.ID, "worker", worker.ID, "error", err)
		}
	}
	return count, nil
}

// spareWorker returns the first worker below capacity.
func (d *Dispatcher) spareWorker(loads map[string]int) (types.Worker, bool) {
	for _, w := range d.config.Workers {
		if loads[w.ID] < w.Capacity {
			return w, true
		}
	}
	return types.Worker{}, false
}

func (d *Dispatcher) worker(id string) (types.Worker, bool) {
	for _, w := range d.config.Workers {
		if w.ID == id {
			return w, true
		}
	}
	return types.Worker{}, false
}

func (d *Dispatcher) claim(ctx context.Context, worker types.Worker, issue *types.Issue) (*types.Issue, error) {
	return d.svc.ClaimIssue(ctx, issue.ID, d.config.Actor, lifecycle.ClaimOptions{
		Assignee:         worker.ID,
		ExpectedRevision: issue.Revision,
		MaxAssigned:      worker.Capacity,
	})
}

// AssignWork claims issueID for workerID. The capacity check runs inside the
// claim transaction and fails with ErrCapacityExceeded.
func (d *Dispatcher) AssignWork(ctx context.Context, workerID, issueID string) (*types.Issue, error) {
	worker, ok := d.worker(workerID)
	if !ok {
		return nil, fmt.Errorf("worker %s: %w", workerID, types.ErrNotFound)
	}
	claimed, err := d.svc.ClaimIssue(ctx, issueID, d.config.Actor, lifecycle.ClaimOptions{
		Assignee:    worker.ID,
		MaxAssigned: worker.Capacity,
	})
	if err != nil {
		d.failed.Add(ctx, 1, metric.WithAttributes(attribute.String("weft.worker", worker.ID)))
		return nil, err
	}
	d.assigned.Add(ctx, 1, metric.WithAttributes(attribute.String("weft.worker", worker.ID)))
	if d.onAssign != nil {
		d.onAssign(ctx, worker, claimed)
	}
	return claimed, nil
}

// Run runs dispatch cycles until the context is cancelled. A cycle runs
// immediately, then every PollInterval.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher starting", "interval", d.config.PollInterval, "workers", len(d.config.Workers))

	d.cycle(ctx)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher shutting down")
			return ctx.Err()
		case <-ticker.C:
			d.cycle(ctx)
		}
	}
}

func (d *Dispatcher) cycle(ctx context.Context) {
	n, err := d.RunDispatchCycle(ctx)
	if err != nil && ctx.Err() == nil {
		d.logger.Error("dispatch cycle error", "error", err)
		return
	}
	if n > 0 {
		d.logger.Info("dispatch cycle", "assigned", n)
	}
}
