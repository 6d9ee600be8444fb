package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/steveyegge/weft/internal/graph"
	"github.com/steveyegge/weft/internal/types"
)

// AddStatus is the outcome of AddDependency.
type AddStatus string

const (
	// Added means the edge was stored (and reduction may have pruned others).
	Added AddStatus = "added"
	// Skipped means the dependency is already implied transitively.
	Skipped AddStatus = "skipped"
	// AlreadyExists means the edge is already a direct dependency.
	AlreadyExists AddStatus = "already_exists"
)

// AddResult reports what AddDependency did.
type AddResult struct {
	Status AddStatus `json:"status"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	// Reason explains a Skipped result.
	Reason string `json:"reason,omitempty"`
	// Pruned lists edges dropped by transitive reduction, keyed by issue.
	Pruned map[string][]string `json:"pruned,omitempty"`
}

// AddDependency makes from depend on to. The edge is validated against a
// fresh snapshot (self, missing and cycle checks), then every dependency set
// that the new edge makes redundant is reduced, all in one transaction.
func (s *Service) AddDependency(ctx context.Context, from, to, actor string) (*AddResult, error) {
	var res *AddResult
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(from)
		if err != nil {
			return err
		}
		res, err = u.addDependency(issue, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	if res.Status == Added {
		s.logger.Info("dependency added", "from", res.From, "to", res.To, "pruned", len(res.Pruned), "actor", actor)
	}
	return res, nil
}

func (u *unit) addDependency(issue *types.Issue, to string) (*AddResult, error) {
	target, err := u.resolve(to)
	if err != nil {
		return nil, fmt.Errorf("dependency %s: %w", to, err)
	}
	res := &AddResult{From: issue.ID, To: target.ID}

	g := u.graph()
	if issue.ID != target.ID && issue.HasDependency(target.ID) {
		res.Status = AlreadyExists
		return res, nil
	}
	if err := g.ValidateAddDependency(issue.ID, target.ID); err != nil {
		return nil, err
	}
	if g.Reachable(issue.ID, target.ID) {
		res.Status = Skipped
		res.Reason = fmt.Sprintf("%s already depends on %s transitively", issue.ID, target.ID)
		return res, nil
	}

	g.SetDependencies(issue.ID, append(issue.Dependencies, target.ID))
	pruned := g.ReduceFrom(issue.ID)

	issue.Dependencies = g.Dependencies(issue.ID)
	u.touch(issue)
	u.record(issue.ID, types.EventDependencyAdded, "", target.ID, "")

	for _, id := range slices.Sorted(maps.Keys(pruned)) {
		edges := pruned[id]
		pi := u.issues[id]
		pi.Dependencies = g.Dependencies(id)
		u.touch(pi)
		for _, dep := range edges {
			u.record(id, types.EventDependencyPruned, dep, "", fmt.Sprintf("implied via %s -> %s", issue.ID, target.ID))
		}
	}
	res.Status = Added
	if len(pruned) > 0 {
		res.Pruned = pruned
	}
	return res, nil
}

// RemoveDependency drops the direct edge from -> to. The dependency target
// may already be deleted; it is matched by exact ID then.
func (s *Service) RemoveDependency(ctx context.Context, from, to, actor string) error {
	return s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(from)
		if err != nil {
			return err
		}
		target := to
		if !issue.HasDependency(to) {
			resolved, err := u.resolve(to)
			if err != nil {
				return fmt.Errorf("dependency %s: %w", to, err)
			}
			target = resolved.ID
		}
		if !issue.HasDependency(target) {
			return fmt.Errorf("%s does not depend on %s: %w", issue.ID, target, types.ErrNotFound)
		}
		issue.Dependencies = slices.DeleteFunc(issue.Dependencies, func(d string) bool { return d == target })
		u.touch(issue)
		u.record(issue.ID, types.EventDependencyRemoved, target, "", "")
		return nil
	})
}

// Graph returns the dependency graph of the current snapshot.
func (s *Service) Graph(ctx context.Context) (*graph.Graph, error) {
	var g *graph.Graph
	err := s.view(ctx, func(u *unit) error {
		g = u.graph()
		return nil
	})
	return g, err
}

// Downstream returns every issue that transitively depends on id.
func (s *Service) Downstream(ctx context.Context, id string) ([]string, error) {
	var out []string
	err := s.view(ctx, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		out = u.graph().Downstream(issue.ID)
		return nil
	})
	return out, err
}

// Roots returns the issues without dependencies.
func (s *Service) Roots(ctx context.Context) ([]string, error) {
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return g.Roots(), nil
}

// Cycles reports dependency cycles present in the stored data.
func (s *Service) Cycles(ctx context.Context) ([][]string, error) {
	g, err := s.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return g.DetectCycles(), nil
}
