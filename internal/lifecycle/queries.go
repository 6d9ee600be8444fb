package lifecycle

import (
	"context"
	"fmt"

	"github.com/steveyegge/weft/internal/query"
	"github.com/steveyegge/weft/internal/types"
)

// queryContext builds a query evaluation context over the current snapshot.
func (s *Service) queryContext(ctx context.Context) (*query.Context, error) {
	var qc *query.Context
	err := s.view(ctx, func(u *unit) error {
		qc = query.NewContext(u.order, u.gates)
		return nil
	})
	return qc, err
}

func (s *Service) filter(ctx context.Context, node query.Node, sortBy types.SortField) ([]*types.Issue, error) {
	qc, err := s.queryContext(ctx)
	if err != nil {
		return nil, err
	}
	out := qc.Filter(node)
	types.SortIssues(out, sortBy, false)
	return out, nil
}

// ListIssues returns every issue in creation order.
func (s *Service) ListIssues(ctx context.Context) ([]*types.Issue, error) {
	qc, err := s.queryContext(ctx)
	if err != nil {
		return nil, err
	}
	return qc.Issues(), nil
}

// QueryReady returns Ready issues in dispatch order: priority descending,
// then creation order.
func (s *Service) QueryReady(ctx context.Context) ([]*types.Issue, error) {
	return s.filter(ctx, &query.StateNode{State: types.StateReady}, types.SortFieldDispatch)
}

// QueryBlocked returns open issues held back by an unmet dependency or an
// unsatisfied precheck gate.
func (s *Service) QueryBlocked(ctx context.Context) ([]*types.Issue, error) {
	return s.filter(ctx, &query.BlockedNode{}, types.SortFieldDispatch)
}

// QueryByState returns issues in state, in creation order.
func (s *Service) QueryByState(ctx context.Context, state types.State) ([]*types.Issue, error) {
	if !state.IsValid() {
		return nil, fmt.Errorf("invalid state %q", state)
	}
	return s.filter(ctx, &query.StateNode{State: state}, types.SortFieldCreated)
}

// QueryByPriority returns issues with priority, in creation order.
func (s *Service) QueryByPriority(ctx context.Context, p types.Priority) ([]*types.Issue, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid priority %d", p)
	}
	return s.filter(ctx, &query.PriorityNode{Priority: p}, types.SortFieldCreated)
}

// QueryByAssignee returns issues assigned to assignee; an empty assignee
// returns the unassigned ones.
func (s *Service) QueryByAssignee(ctx context.Context, assignee string) ([]*types.Issue, error) {
	var node query.Node = &query.AssigneeNode{Assignee: assignee}
	if assignee == "" {
		node = &query.UnassignedNode{}
	}
	return s.filter(ctx, node, types.SortFieldCreated)
}

// QueryByLabel returns issues carrying label "ns:value"; "ns:*" matches any
// value in the namespace.
func (s *Service) QueryByLabel(ctx context.Context, label string) ([]*types.Issue, error) {
	ns, value, ok := types.SplitLabel(label)
	if !ok {
		return nil, fmt.Errorf("label %q must have the form namespace:value", label)
	}
	if value == "*" {
		value = ""
	}
	return s.filter(ctx, &query.LabelNode{Namespace: ns, Value: value}, types.SortFieldCreated)
}

// Query evaluates a filter expression. Malformed input fails with a
// *query.QuerySyntaxError.
func (s *Service) Query(ctx context.Context, expr string, sortBy types.SortField) ([]*types.Issue, error) {
	node, err := query.Parse(expr)
	if err != nil {
		return nil, err
	}
	if sortBy == "" {
		sortBy = types.SortFieldCreated
	}
	return s.filter(ctx, node, sortBy)
}
