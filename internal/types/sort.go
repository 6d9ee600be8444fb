package types

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// SortField names an ordering for issue listings.
type SortField string

const (
	SortFieldDispatch SortField = "dispatch" // Priority descending, then creation order
	SortFieldCreated  SortField = "created"
	SortFieldUpdated  SortField = "updated"
	SortFieldID       SortField = "id"
	SortFieldTitle    SortField = "title"
)

// ParseSortField converts a user-supplied field name, accepting "priority"
// as an alias for dispatch order.
func ParseSortField(raw string) (SortField, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "dispatch", "priority":
		return SortFieldDispatch, nil
	case "created":
		return SortFieldCreated, nil
	case "updated":
		return SortFieldUpdated, nil
	case "id":
		return SortFieldID, nil
	case "title":
		return SortFieldTitle, nil
	}
	return "", fmt.Errorf("unknown sort field %q", raw)
}

// CompareDispatchOrder orders a before b when a should be dispatched first:
// higher priority wins, equal priorities fall back to creation order.
func CompareDispatchOrder(a, b *Issue) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

// SortIssues sorts issues in place by field. The sort is stable.
func SortIssues(issues []*Issue, field SortField, reverse bool) {
	var less func(a, b *Issue) int
	switch field {
	case SortFieldCreated:
		less = func(a, b *Issue) int { return cmp.Compare(a.Seq, b.Seq) }
	case SortFieldUpdated:
		less = func(a, b *Issue) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	case SortFieldID:
		less = func(a, b *Issue) int { return strings.Compare(a.ID, b.ID) }
	case SortFieldTitle:
		less = func(a, b *Issue) int { return strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title)) }
	default:
		less = CompareDispatchOrder
	}
	if reverse {
		inner := less
		less = func(a, b *Issue) int { return inner(b, a) }
	}
	slices.SortStableFunc(issues, less)
}
