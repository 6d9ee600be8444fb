package types

import "testing"

func TestSortIssuesDispatchOrder(t *testing.T) {
	issues := []*Issue{
		{ID: "a", Priority: PriorityLow, Seq: 1},
		{ID: "b", Priority: PriorityHigh, Seq: 2},
		{ID: "c", Priority: PriorityCritical, Seq: 3},
		{ID: "d", Priority: PriorityNormal, Seq: 4},
		{ID: "e", Priority: PriorityHigh, Seq: 0},
	}
	SortIssues(issues, SortFieldDispatch, false)

	want := []string{"c", "e", "b", "d", "a"}
	for i, id := range want {
		if issues[i].ID != id {
			t.Fatalf("position %d: got %s, want %s (full order %v)", i, issues[i].ID, id, ids(issues))
		}
	}
}

func TestSortIssuesReverse(t *testing.T) {
	issues := []*Issue{
		{ID: "x", Seq: 2},
		{ID: "y", Seq: 1},
		{ID: "z", Seq: 3},
	}
	SortIssues(issues, SortFieldCreated, true)
	if got := ids(issues); got[0] != "z" || got[2] != "y" {
		t.Fatalf("unexpected reverse created order %v", got)
	}
}

func TestParseSortField(t *testing.T) {
	tests := []struct {
		in      string
		want    SortField
		wantErr bool
	}{
		{"", SortFieldDispatch, false},
		{"priority", SortFieldDispatch, false},
		{"Created", SortFieldCreated, false},
		{"id", SortFieldID, false},
		{"bogus", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSortField(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSortField(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSortField(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func ids(issues []*Issue) []string {
	out := make([]string, len(issues))
	for i, issue := range issues {
		out[i] = issue.ID
	}
	return out
}
