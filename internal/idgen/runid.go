package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// RunAlphabet defines the character set used for gate run IDs.
const RunAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RunIDLength is the number of random characters in a run ID (excluding the prefix).
const RunIDLength = 12

// RunID returns a new random gate run ID such as "run-k3x9q0m2a7bd".
func RunID() (string, error) {
	id, err := nanoid.Generate(RunAlphabet, RunIDLength)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return "run-" + id, nil
}
