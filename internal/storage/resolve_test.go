package storage

import (
	"errors"
	"testing"

	"github.com/steveyegge/weft/internal/types"
)

func TestResolveID(t *testing.T) {
	ids := []string{"wf-a3f8e9", "wf-a3f8e9.1", "wf-b1c2d3", "wf-b1c9zz", "ops-77aa11"}

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr error
	}{
		{"exact", "wf-b1c2d3", "wf-b1c2d3", nil},
		{"exact child", "wf-a3f8e9.1", "wf-a3f8e9.1", nil},
		{"unique prefix", "wf-b1c2", "wf-b1c2d3", nil},
		{"bare hash prefix", "77aa", "ops-77aa11", nil},
		{"bare hash beats children", "a3f8e9", "wf-a3f8e9", nil},
		{"ambiguous", "wf-b1c", "", types.ErrAmbiguousID},
		{"ambiguous parent and child", "a3f8", "", types.ErrAmbiguousID},
		{"too short", "wf-", "", types.ErrPrefixTooShort},
		{"too short bare", "b1", "", types.ErrPrefixTooShort},
		{"not found", "zzzz", "", types.ErrNotFound},
		{"empty", "  ", "", types.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveID(ids, tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ResolveID(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveID(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ResolveID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestResolveIDExactShortID(t *testing.T) {
	// An exact match is accepted even below the minimum prefix length.
	got, err := ResolveID([]string{"x-1", "x-12"}, "x-1")
	if err != nil || got != "x-1" {
		t.Fatalf("ResolveID exact short = %q, %v", got, err)
	}
}
