// Package labels validates namespaced issue labels ("ns:value").
//
// Namespaces are optional. A label whose namespace has no declaration is
// accepted as-is. Declared namespaces may be unique (one value per issue) and
// may restrict their values to a whitelist.
package labels

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/spf13/viper"

	"github.com/steveyegge/weft/internal/types"
)

// Normalize trims a label and checks that it has the "ns:value" shape.
func Normalize(label string) (string, error) {
	label = strings.TrimSpace(label)
	ns, value, ok := types.SplitLabel(label)
	if !ok {
		return "", fmt.Errorf("label %q must have the form namespace:value", label)
	}
	if strings.ContainsAny(ns, " \t") || strings.ContainsAny(value, " \t") {
		return "", fmt.Errorf("label %q must not contain whitespace", label)
	}
	return label, nil
}

// ValidateAdd checks whether label may be added to issue under namespaces.
// Violations wrap types.ErrUniqueNamespaceViolation.
func ValidateAdd(issue *types.Issue, label string, namespaces map[string]*types.LabelNamespace) error {
	ns, value, ok := types.SplitLabel(label)
	if !ok {
		return fmt.Errorf("label %q must have the form namespace:value", label)
	}
	def, declared := namespaces[ns]
	if !declared {
		return nil
	}
	if len(def.Values) > 0 && !slices.Contains(def.Values, value) {
		return fmt.Errorf("label %s: value %q not allowed in namespace %s (allowed: %s): %w",
			label, value, ns, strings.Join(def.Values, ", "), types.ErrUniqueNamespaceViolation)
	}
	if def.Unique {
		for _, existing := range issue.LabelsInNamespace(ns) {
			if existing != value {
				return fmt.Errorf("issue %s already has %s:%s and namespace %s is unique: %w",
					issue.ID, ns, existing, ns, types.ErrUniqueNamespaceViolation)
			}
		}
	}
	return nil
}

// Violation records a namespace rule broken by an existing issue, usually
// after the files were edited by hand.
type Violation struct {
	IssueID   string
	Namespace string
	Kind      string   // "conflict" or "value"
	Present   []string // the offending labels
}

// FindViolations checks issues against namespaces.
func FindViolations(issues []*types.Issue, namespaces map[string]*types.LabelNamespace) []Violation {
	names := make([]string, 0, len(namespaces))
	for name := range namespaces {
		names = append(names, name)
	}
	sort.Strings(names)

	var violations []Violation
	for _, issue := range issues {
		for _, name := range names {
			def := namespaces[name]
			values := issue.LabelsInNamespace(name)
			if def.Unique && len(values) > 1 {
				violations = append(violations, Violation{
					IssueID:   issue.ID,
					Namespace: name,
					Kind:      "conflict",
					Present:   prefixed(name, values),
				})
			}
			if len(def.Values) == 0 {
				continue
			}
			var bad []string
			for _, v := range values {
				if !slices.Contains(def.Values, v) {
					bad = append(bad, v)
				}
			}
			if len(bad) > 0 {
				violations = append(violations, Violation{
					IssueID:   issue.ID,
					Namespace: name,
					Kind:      "value",
					Present:   prefixed(name, bad),
				})
			}
		}
	}
	return violations
}

func prefixed(ns string, values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = ns + ":" + v
	}
	return out
}

// ParseNamespaces reads labels.namespaces from a config.yaml file:
//
//	labels:
//	  namespaces:
//	    - name: area
//	      unique: true
//	      values: [api, cli, storage]
//
// Returns nil, nil if the key is absent or the file doesn't exist.
func ParseNamespaces(configPath string) ([]*types.LabelNamespace, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	raw := v.Get("labels.namespaces")
	if raw == nil {
		return nil, nil
	}

	rawSlice, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("labels.namespaces must be a list, got %T", raw)
	}

	var out []*types.LabelNamespace
	seen := make(map[string]bool)
	for i, item := range rawSlice {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("labels.namespaces[%d]: expected map, got %T", i, item)
		}

		ns := &types.LabelNamespace{}
		name, _ := m["name"].(string)
		ns.Name = strings.TrimSpace(name)
		if ns.Name == "" || strings.Contains(ns.Name, ":") {
			return nil, fmt.Errorf("labels.namespaces[%d]: invalid name %q", i, name)
		}
		if seen[ns.Name] {
			return nil, fmt.Errorf("labels.namespaces[%d]: duplicate namespace %q", i, ns.Name)
		}
		seen[ns.Name] = true

		if u, ok := m["unique"].(bool); ok {
			ns.Unique = u
		}
		if d, ok := m["description"].(string); ok {
			ns.Description = strings.TrimSpace(d)
		}
		if valuesRaw, ok := m["values"]; ok {
			valuesSlice, ok := valuesRaw.([]any)
			if !ok {
				return nil, fmt.Errorf("labels.namespaces[%d]: 'values' must be a list", i)
			}
			for j, val := range valuesSlice {
				s, ok := val.(string)
				if !ok {
					return nil, fmt.Errorf("labels.namespaces[%d].values[%d]: expected string, got %T", i, j, val)
				}
				if s = strings.TrimSpace(s); s != "" && !slices.Contains(ns.Values, s) {
					ns.Values = append(ns.Values, s)
				}
			}
		}
		out = append(out, ns)
	}
	return out, nil
}
