package jsonl

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/steveyegge/weft/internal/types"
)

func readNamespaces(path string) ([]*types.LabelNamespace, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is inside the control directory
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var namespaces []*types.LabelNamespace
	if err := json.Unmarshal(data, &namespaces); err != nil {
		return nil, err
	}
	return namespaces, nil
}
