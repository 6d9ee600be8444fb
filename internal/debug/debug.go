package debug

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

var (
	enabled     = os.Getenv("WEFT_DEBUG") != ""
	verboseMode = false
	quietMode   = false
	output      io.Writer = os.Stderr
	outMu       sync.Mutex
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

// SetOutput redirects debug output; tests use it to capture traces.
func SetOutput(w io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	output = w
}

// Logf writes a trace line when debugging is enabled. Every call ends on its
// own line whether or not format carries the newline.
func Logf(format string, args ...interface{}) {
	if enabled || verboseMode {
		msg := fmt.Sprintf(format, args...)
		if !strings.HasSuffix(msg, "\n") {
			msg += "\n"
		}
		outMu.Lock()
		defer outMu.Unlock()
		_, _ = io.WriteString(output, msg)
	}
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}
