package lifecycle

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/steveyegge/weft/internal/types"
)

// GateOptionKind selects how breakdown children get gate requirements.
type GateOptionKind string

const (
	GatesNone    GateOptionKind = "none"
	GatesInherit GateOptionKind = "inherit" // copy the parent's requirements, all pending
	GatesPreset  GateOptionKind = "preset"
)

// GateOption configures gates on breakdown children.
type GateOption struct {
	Kind   GateOptionKind
	Preset string // for GatesPreset
}

// ParseGateOption parses "none", "inherit" or "preset:<name>".
func ParseGateOption(s string) (GateOption, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || s == string(GatesNone):
		return GateOption{Kind: GatesNone}, nil
	case s == string(GatesInherit):
		return GateOption{Kind: GatesInherit}, nil
	case strings.HasPrefix(s, "preset:") && len(s) > len("preset:"):
		return GateOption{Kind: GatesPreset, Preset: strings.TrimPrefix(s, "preset:")}, nil
	}
	return GateOption{}, fmt.Errorf("invalid gate option %q (want none, inherit or preset:<name>)", s)
}

// Subtask describes one child created by BreakdownIssue.
type Subtask struct {
	Title       string
	Description string
	// Priority defaults to the parent's.
	Priority *types.Priority
}

// BreakdownIssue splits parent into child issues with IDs <parent>.<n>.
// The parent depends on every child, so it waits until they are all Done.
// Children inherit the parent's labels.
func (s *Service) BreakdownIssue(ctx context.Context, parentID string, childType types.IssueType, subtasks []Subtask, opt GateOption, actor string) ([]*types.Issue, error) {
	if len(subtasks) == 0 {
		return nil, fmt.Errorf("breakdown needs at least one subtask")
	}
	if childType == "" {
		childType = types.TypeTask
	}
	var children []*types.Issue
	err := s.update(ctx, actor, func(u *unit) error {
		parent, err := u.resolve(parentID)
		if err != nil {
			return err
		}
		if parent.State.IsTerminal() {
			return fmt.Errorf("breakdown %s: issue is %s: %w", parent.ID, parent.State, types.ErrInvalidState)
		}

		next := u.nextChildIndex(parent.ID)
		for i, st := range subtasks {
			p := CreateParams{
				ID:          fmt.Sprintf("%s.%d", parent.ID, next+i),
				Title:       st.Title,
				Description: st.Description,
				IssueType:   childType,
				Priority:    parent.Priority,
				Labels:      parent.Labels,
			}
			if st.Priority != nil {
				p.Priority = *st.Priority
			}
			switch opt.Kind {
			case GatesInherit:
				p.Gates = parent.RequiredGates
			case GatesPreset:
				p.Preset = opt.Preset
			case GatesNone, "":
			default:
				return fmt.Errorf("invalid gate option %q", opt.Kind)
			}

			child, err := u.create(p, parent.ID)
			if err != nil {
				return fmt.Errorf("subtask %d: %w", i+1, err)
			}
			if _, err := u.addDependency(parent, child.ID); err != nil {
				return err
			}
			children = append(children, child)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]*types.Issue, len(children))
	for i, c := range children {
		out[i] = c.Clone()
	}
	s.logger.Info("issue broken down", "parent", parentID, "children", len(out), "actor", actor)
	return out, nil
}

// nextChildIndex returns one past the highest existing <parent>.<n> suffix.
func (u *unit) nextChildIndex(parentID string) int {
	max := 0
	prefix := parentID + "."
	for id := range u.issues {
		rest, ok := strings.CutPrefix(id, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}
