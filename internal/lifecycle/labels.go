package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/steveyegge/weft/internal/labels"
	"github.com/steveyegge/weft/internal/types"
)

// AddLabel attaches a namespaced label. Declared namespace rules are
// enforced and violations fail with ErrUniqueNamespaceViolation.
func (s *Service) AddLabel(ctx context.Context, id, label, actor string) (*types.Issue, error) {
	var out *types.Issue
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		out = issue
		return u.addLabel(issue, label)
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

func (u *unit) addLabel(issue *types.Issue, label string) error {
	label, err := labels.Normalize(label)
	if err != nil {
		return err
	}
	if issue.HasLabel(label) {
		return nil
	}
	namespaces, err := u.namespaces()
	if err != nil {
		return err
	}
	if err := labels.ValidateAdd(issue, label, namespaces); err != nil {
		return err
	}
	issue.Labels = append(issue.Labels, label)
	u.touch(issue)
	u.record(issue.ID, types.EventLabelAdded, "", label, "")
	return nil
}

// RemoveLabel detaches a label.
func (s *Service) RemoveLabel(ctx context.Context, id, label, actor string) (*types.Issue, error) {
	var out *types.Issue
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		if !issue.HasLabel(label) {
			return fmt.Errorf("issue %s has no label %s: %w", issue.ID, label, types.ErrNotFound)
		}
		issue.Labels = slices.DeleteFunc(issue.Labels, func(l string) bool { return l == label })
		u.touch(issue)
		u.record(issue.ID, types.EventLabelRemoved, label, "", "")
		out = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out.Clone(), nil
}

// namespaces merges configured namespaces with stored ones; stored win.
func (u *unit) namespaces() (map[string]*types.LabelNamespace, error) {
	out := make(map[string]*types.LabelNamespace)
	for _, ns := range u.svc.namespaces {
		out[ns.Name] = ns
	}
	stored, err := u.tx.LabelNamespaces(u.ctx)
	if err != nil {
		return nil, err
	}
	for _, ns := range stored {
		out[ns.Name] = ns
	}
	return out, nil
}

// DefineNamespace creates or replaces a label namespace. It fails when
// existing labels already break the new rules.
func (s *Service) DefineNamespace(ctx context.Context, ns *types.LabelNamespace, actor string) error {
	if ns.Name == "" {
		return fmt.Errorf("namespace name is required")
	}
	return s.update(ctx, actor, func(u *unit) error {
		check := map[string]*types.LabelNamespace{ns.Name: ns}
		if v := labels.FindViolations(u.order, check); len(v) > 0 {
			return fmt.Errorf("namespace %s: issue %s has %v: %w",
				ns.Name, v[0].IssueID, v[0].Present, types.ErrUniqueNamespaceViolation)
		}
		return u.tx.SaveLabelNamespace(u.ctx, ns)
	})
}

// Namespaces returns the effective label namespaces sorted by name.
func (s *Service) Namespaces(ctx context.Context) ([]*types.LabelNamespace, error) {
	var out []*types.LabelNamespace
	err := s.view(ctx, func(u *unit) error {
		m, err := u.namespaces()
		if err != nil {
			return err
		}
		for _, name := range slices.Sorted(maps.Keys(m)) {
			out = append(out, m[name])
		}
		return nil
	})
	return out, err
}
