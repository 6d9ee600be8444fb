package jsonl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/steveyegge/weft/internal/types"
)

// DuplicateRemoval tracks duplicate IDs with kept vs removed versions
type DuplicateRemoval struct {
	ID              string
	KeptVersion     *types.Issue
	RemovedVersions []*types.Issue
}

// Deduplicate collapses records sharing an ID, keeping the highest revision
// (UpdatedAt breaks ties). Merge conflicts resolved by concatenation produce
// such duplicates. Output keeps the first-seen order of IDs.
func Deduplicate(issues []*types.Issue) ([]*types.Issue, []*DuplicateRemoval) {
	byID := make(map[string][]*types.Issue)
	var order []string
	for _, issue := range issues {
		if _, seen := byID[issue.ID]; !seen {
			order = append(order, issue.ID)
		}
		byID[issue.ID] = append(byID[issue.ID], issue)
	}

	result := make([]*types.Issue, 0, len(byID))
	var removals []*DuplicateRemoval
	for _, id := range order {
		group := byID[id]
		if len(group) > 1 {
			sort.SliceStable(group, func(i, j int) bool {
				if group[i].Revision != group[j].Revision {
					return group[i].Revision > group[j].Revision
				}
				return group[i].UpdatedAt.After(group[j].UpdatedAt)
			})
			removals = append(removals, &DuplicateRemoval{
				ID:              id,
				KeptVersion:     group[0],
				RemovedVersions: group[1:],
			})
		}
		result = append(result, group[0])
	}
	return result, removals
}

// ValidationReport contains the results of control-directory validation
type ValidationReport struct {
	TotalIssues      int
	DuplicateIDs     map[string]int      // ID -> count of occurrences
	BrokenReferences map[string][]string // Issue ID -> dependencies that no longer exist
	UnknownGates     map[string][]string // Issue ID -> required gates with no definition
	InvalidIssues    []InvalidIssueReport
}

// InvalidIssueReport describes an issue that failed validation
type InvalidIssueReport struct {
	ID     string
	Reason string
}

// ValidateIssues checks a dataset for duplicate IDs, dangling dependency
// references, undefined gates, and records that fail Issue.Validate.
// Dangling references are reported, never repaired: deletes do not cascade.
func ValidateIssues(issues []*types.Issue, gates map[string]*types.Gate) *ValidationReport {
	report := &ValidationReport{
		TotalIssues:      len(issues),
		DuplicateIDs:     make(map[string]int),
		BrokenReferences: make(map[string][]string),
		UnknownGates:     make(map[string][]string),
	}

	idSet := make(map[string]bool)
	for _, issue := range issues {
		idSet[issue.ID] = true
		report.DuplicateIDs[issue.ID]++
	}
	for id, n := range report.DuplicateIDs {
		if n == 1 {
			delete(report.DuplicateIDs, id)
		}
	}

	for _, issue := range issues {
		for _, dep := range issue.Dependencies {
			if !idSet[dep] {
				report.BrokenReferences[issue.ID] = append(report.BrokenReferences[issue.ID], dep)
			}
		}
		if gates != nil {
			for _, key := range issue.RequiredGates {
				if _, ok := gates[key]; !ok {
					report.UnknownGates[issue.ID] = append(report.UnknownGates[issue.ID], key)
				}
			}
		}
		if err := issue.Validate(); err != nil {
			report.InvalidIssues = append(report.InvalidIssues, InvalidIssueReport{
				ID:     issue.ID,
				Reason: err.Error(),
			})
		}
	}

	return report
}

// HasIssues returns true if the validation report found any problems
func (r *ValidationReport) HasIssues() bool {
	return len(r.DuplicateIDs) > 0 ||
		len(r.BrokenReferences) > 0 ||
		len(r.UnknownGates) > 0 ||
		len(r.InvalidIssues) > 0
}

// Summary returns a human-readable summary of the validation
func (r *ValidationReport) Summary() string {
	lines := []string{fmt.Sprintf("Checked %d issues", r.TotalIssues)}
	if !r.HasIssues() {
		return lines[0] + ": no problems found"
	}
	if len(r.DuplicateIDs) > 0 {
		lines = append(lines, fmt.Sprintf("  duplicate IDs: %d", len(r.DuplicateIDs)))
		for _, id := range sortedKeys(r.DuplicateIDs) {
			lines = append(lines, fmt.Sprintf("    %s (x%d)", id, r.DuplicateIDs[id]))
		}
	}
	if len(r.BrokenReferences) > 0 {
		lines = append(lines, fmt.Sprintf("  missing dependencies: %d issues", len(r.BrokenReferences)))
		for _, id := range sortedKeys(r.BrokenReferences) {
			lines = append(lines, fmt.Sprintf("    %s -> %s", id, strings.Join(r.BrokenReferences[id], ", ")))
		}
	}
	if len(r.UnknownGates) > 0 {
		lines = append(lines, fmt.Sprintf("  undefined gates: %d issues", len(r.UnknownGates)))
		for _, id := range sortedKeys(r.UnknownGates) {
			lines = append(lines, fmt.Sprintf("    %s: %s", id, strings.Join(r.UnknownGates[id], ", ")))
		}
	}
	for _, inv := range r.InvalidIssues {
		lines = append(lines, fmt.Sprintf("  invalid %s: %s", inv.ID, inv.Reason))
	}
	return strings.Join(lines, "\n")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
