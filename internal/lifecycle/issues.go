package lifecycle

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/steveyegge/weft/internal/gate"
	"github.com/steveyegge/weft/internal/idgen"
	"github.com/steveyegge/weft/internal/types"
)

// CreateParams describes a new issue.
type CreateParams struct {
	// ID overrides generation. It must not exist yet.
	ID           string
	Title        string
	Description  string
	IssueType    types.IssueType
	Priority     types.Priority
	Labels       []string
	DocRefs      []string
	Dependencies []string // IDs or unique prefixes
	Gates        []string // keys of defined gates
	Preset       string   // optional preset name applied on creation
}

// CreateIssue creates an issue in Backlog and immediately derives Ready if
// nothing blocks it.
func (s *Service) CreateIssue(ctx context.Context, p CreateParams, actor string) (*types.Issue, error) {
	var created *types.Issue
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.create(p, "")
		if err != nil {
			return err
		}
		created = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("issue created", "issue", created.ID, "state", created.State, "actor", actor)
	return created.Clone(), nil
}

func (u *unit) create(p CreateParams, parent string) (*types.Issue, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	if p.IssueType == "" {
		p.IssueType = types.TypeTask
	}
	if !p.IssueType.IsValid() {
		return nil, fmt.Errorf("invalid issue type %q", p.IssueType)
	}
	if !p.Priority.IsValid() {
		return nil, fmt.Errorf("invalid priority %d", p.Priority)
	}

	id := p.ID
	if id != "" {
		if _, exists := u.issues[id]; exists {
			return nil, fmt.Errorf("issue %s already exists", id)
		}
	} else {
		var err error
		id, err = idgen.NewIssueID(u.svc.prefix, title, p.Description, u.actor, u.now, func(candidate string) bool {
			_, taken := u.issues[candidate]
			return taken
		})
		if err != nil {
			return nil, err
		}
	}

	issue := &types.Issue{
		ID:          id,
		Title:       title,
		Description: p.Description,
		IssueType:   p.IssueType,
		State:       types.StateBacklog,
		Priority:    p.Priority,
		DocRefs:     slices.Clone(p.DocRefs),
		Parent:      parent,
		GateStatus:  make(map[string]types.GateStatus),
		CreatedAt:   u.now,
	}
	u.add(issue)
	u.record(id, types.EventCreated, "", title, "")

	for _, label := range p.Labels {
		if err := u.addLabel(issue, label); err != nil {
			return nil, err
		}
	}
	for _, key := range p.Gates {
		if err := u.requireGate(issue, key); err != nil {
			return nil, err
		}
	}
	if p.Preset != "" {
		if _, err := u.applyPreset(p.Preset, issue); err != nil {
			return nil, err
		}
	}
	for _, dep := range p.Dependencies {
		if _, err := u.addDependency(issue, dep); err != nil {
			return nil, err
		}
	}
	return issue, nil
}

// UpdateParams lists optional field changes; nil fields are left alone.
// State and assignee change only through transitions.
type UpdateParams struct {
	Title       *string
	Description *string
	IssueType   *types.IssueType
	Priority    *types.Priority
	DocRefs     *[]string
}

// UpdateIssue edits descriptive fields of an issue.
func (s *Service) UpdateIssue(ctx context.Context, id string, p UpdateParams, actor string) (*types.Issue, error) {
	var updated *types.Issue
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		var fields []string
		if p.Title != nil && *p.Title != issue.Title {
			issue.Title = strings.TrimSpace(*p.Title)
			fields = append(fields, "title")
		}
		if p.Description != nil && *p.Description != issue.Description {
			issue.Description = *p.Description
			fields = append(fields, "description")
		}
		if p.IssueType != nil && *p.IssueType != issue.IssueType {
			issue.IssueType = *p.IssueType
			fields = append(fields, "issue_type")
		}
		if p.Priority != nil && *p.Priority != issue.Priority {
			old := issue.Priority
			issue.Priority = *p.Priority
			fields = append(fields, fmt.Sprintf("priority %s -> %s", old, issue.Priority))
		}
		if p.DocRefs != nil && !slices.Equal(*p.DocRefs, issue.DocRefs) {
			issue.DocRefs = slices.Clone(*p.DocRefs)
			fields = append(fields, "doc_refs")
		}
		if len(fields) > 0 {
			u.touch(issue)
			u.record(issue.ID, types.EventUpdated, "", "", strings.Join(fields, ", "))
		}
		updated = issue
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated.Clone(), nil
}

// DeleteIssue removes the issue record. Other issues keep their dependency
// references to it; those now resolve as missing and block.
func (s *Service) DeleteIssue(ctx context.Context, id, actor string) error {
	var deleted string
	err := s.update(ctx, actor, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		deleted = issue.ID
		u.remove(issue)
		u.record(issue.ID, types.EventDeleted, string(issue.State), "", issue.Title)
		return nil
	})
	if err == nil {
		s.logger.Info("issue deleted", "issue", deleted, "actor", actor)
	}
	return err
}

// DependencyInfo describes one direct dependency in Show output.
type DependencyInfo struct {
	ID      string      `json:"id"`
	Title   string      `json:"title,omitempty"`
	State   types.State `json:"state,omitempty"`
	Missing bool        `json:"missing,omitempty"`
}

// Details is the full view of one issue.
type Details struct {
	Issue        *types.Issue           `json:"issue"`
	Dependencies []DependencyInfo       `json:"dependencies"`
	Dependents   []string               `json:"dependents"`
	Precheck     gate.Evaluation        `json:"precheck"`
	Postcheck    gate.Evaluation        `json:"postcheck"`
	Blocked      bool                   `json:"blocked"`
	Runs         []*types.GateRunResult `json:"runs,omitempty"`
	Gates        map[string]*types.Gate `json:"gates,omitempty"`
}

// Show resolves id and returns the issue with its dependency and gate context.
func (s *Service) Show(ctx context.Context, id string) (*Details, error) {
	var d *Details
	err := s.view(ctx, func(u *unit) error {
		issue, err := u.resolve(id)
		if err != nil {
			return err
		}
		g := u.graph()
		d = &Details{
			Issue:      issue,
			Dependents: g.Dependents(issue.ID),
			Precheck:   gate.Evaluate(issue, types.StagePrecheck, u.gates),
			Postcheck:  gate.Evaluate(issue, types.StagePostcheck, u.gates),
			Blocked:    !issue.State.IsTerminal() && !u.unblocked(g, issue),
			Gates:      make(map[string]*types.Gate),
		}
		for _, dep := range issue.Dependencies {
			info := DependencyInfo{ID: dep}
			if di, ok := u.issues[dep]; ok {
				info.Title = di.Title
				info.State = di.State
			} else {
				info.Missing = true
			}
			d.Dependencies = append(d.Dependencies, info)
		}
		for _, key := range issue.RequiredGates {
			if def, ok := u.gates[key]; ok {
				d.Gates[key] = def
			}
		}
		d.Runs, err = u.tx.ListGateRuns(ctx, issue.ID)
		return err
	})
	return d, err
}

// Events returns the audit trail of an issue, or of every issue when id is
// empty. Events of deleted issues are still returned for their full ID.
func (s *Service) Events(ctx context.Context, id string) ([]*types.Event, error) {
	var out []*types.Event
	err := s.view(ctx, func(u *unit) error {
		issueID := id
		if id != "" {
			if issue, err := u.resolve(id); err == nil {
				issueID = issue.ID
			}
		}
		var err error
		out, err = u.tx.ListEvents(ctx, issueID)
		return err
	})
	return out, err
}
