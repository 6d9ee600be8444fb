package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/steveyegge/weft/internal/types"
)

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		os.Exit(1)
	}
}

// jsonError is the machine-readable error written with --json.
type jsonError struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// outputJSONError outputs an error as JSON to stderr and exits with code 1.
func outputJSONError(err error, code string) {
	encoder := json.NewEncoder(os.Stderr)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(jsonError{Error: err.Error(), Code: code})
	os.Exit(1)
}

// fatal reports err in the active output mode and exits. With --json the
// stable error code of the wrapped sentinel is included.
func fatal(err error) {
	if jsonOutput {
		outputJSONError(err, types.ErrorCode(err))
	}
	FatalError("%v", err)
}

// FatalError writes an error message to stderr and exits with code 1.
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// FatalErrorWithHint writes an error message with a hint to stderr and exits.
func FatalErrorWithHint(message, hint string) {
	if jsonOutput {
		outputJSONError(fmt.Errorf("%s", message), "")
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	os.Exit(1)
}

// WarnError writes a warning message to stderr and returns.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}
