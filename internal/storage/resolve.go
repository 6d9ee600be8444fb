package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/weft/internal/types"
)

// ResolveID resolves a potentially partial issue ID against the known IDs.
// Supports:
//   - Full IDs: "wf-a3f8e9" → "wf-a3f8e9"
//   - Leading substrings: "wf-a3f8" → "wf-a3f8e9" (if unique match)
//   - Bare hashes: "a3f8e9" or "a3f8" → "wf-a3f8e9" (matched after the prefix dash)
//   - Hierarchical: "a3f8e9.1" → "wf-a3f8e9.1"
//
// Exact matches always win, even when the input is also a prefix of other IDs.
func ResolveID(ids []string, input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty issue id: %w", types.ErrNotFound)
	}
	for _, id := range ids {
		if id == input {
			return id, nil
		}
	}
	if len(input) < types.MinShortIDLength {
		return "", fmt.Errorf("prefix %q has %d characters, need at least %d: %w",
			input, len(input), types.MinShortIDLength, types.ErrPrefixTooShort)
	}

	var matches []string
	for _, id := range ids {
		if strings.HasPrefix(id, input) {
			matches = append(matches, id)
			continue
		}
		if _, hash, ok := strings.Cut(id, "-"); ok && strings.HasPrefix(hash, input) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no issue found matching %q: %w", input, types.ErrNotFound)
	case 1:
		return matches[0], nil
	}

	// A unique exact-length match on the bare hash beats longer hierarchical children.
	sort.Strings(matches)
	var exactHash []string
	for _, m := range matches {
		if _, hash, ok := strings.Cut(m, "-"); ok && hash == input {
			exactHash = append(exactHash, m)
		}
	}
	if len(exactHash) == 1 {
		return exactHash[0], nil
	}
	shown := matches
	if len(shown) > 5 {
		shown = shown[:5]
	}
	return "", fmt.Errorf("ambiguous ID %q matches %d issues (%s): %w",
		input, len(matches), strings.Join(shown, ", "), types.ErrAmbiguousID)
}
