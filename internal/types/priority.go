package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Priority orders issues for dispatch. Higher values are dispatched first.
type Priority int

// Priority constants, ordered Low < Normal < High < Critical
const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

var priorityNames = [...]string{"low", "normal", "high", "critical"}

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

func (p Priority) String() string {
	if !p.IsValid() {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority parses a priority name. Single-letter and P0-P3 shorthands
// are accepted, with P0 the most urgent.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "l", "p3":
		return PriorityLow, nil
	case "normal", "n", "medium", "p2":
		return PriorityNormal, nil
	case "high", "h", "p1":
		return PriorityHigh, nil
	case "critical", "c", "p0":
		return PriorityCritical, nil
	}
	return 0, fmt.Errorf("invalid priority %q (want low, normal, high or critical)", s)
}

// MarshalJSON writes the priority as its lowercase name.
func (p Priority) MarshalJSON() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return json.Marshal(p.String())
}

// UnmarshalJSON accepts the lowercase name.
func (p *Priority) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("priority must be a string: %w", err)
	}
	parsed, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
