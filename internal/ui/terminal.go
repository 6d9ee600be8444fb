package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

func init() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// IsTerminal reports whether stdout is attached to a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) // #nosec G115 - fd fits in int
}

// ShouldUseColor follows the NO_COLOR and CLICOLOR conventions, falling back
// to TTY detection.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether state icons may use non-ASCII symbols.
// WEFT_NO_EMOJI turns them off.
func ShouldUseEmoji() bool {
	if os.Getenv("WEFT_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// DisableColor forces plain output, e.g. when --json is set.
func DisableColor() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// TerminalWidth returns the width of stdout, or fallback when it is not a
// terminal.
func TerminalWidth(fallback int) int {
	w, _, err := term.GetSize(int(os.Stdout.Fd())) // #nosec G115 - fd fits in int
	if err != nil || w <= 0 {
		return fallback
	}
	return w
}
