// Package ui provides terminal styling for weft CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/steveyegge/weft/internal/types"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
	ColorGated = lipgloss.AdaptiveColor{
		Light: "#a37acc", // ayu light magenta
		Dark:  "#d2a6ff", // ayu dark magenta
	}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)
	GatedStyle  = lipgloss.NewStyle().Foreground(ColorGated)
)

// CategoryStyle for section headers - bold with accent color
var CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)

// Status icons
const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconSkip = "-"
	IconInfo = "ℹ"
)

// Separators
const (
	SeparatorLight = "──────────────────────────────────────────"
)

// RenderPass renders text with pass (green) styling
func RenderPass(s string) string {
	return PassStyle.Render(s)
}

// RenderWarn renders text with warning (yellow) styling
func RenderWarn(s string) string {
	return WarnStyle.Render(s)
}

// RenderFail renders text with fail (red) styling
func RenderFail(s string) string {
	return FailStyle.Render(s)
}

// RenderMuted renders text with muted (gray) styling
func RenderMuted(s string) string {
	return MutedStyle.Render(s)
}

// RenderAccent renders text with accent (blue) styling
func RenderAccent(s string) string {
	return AccentStyle.Render(s)
}

// RenderCategory renders a category header in uppercase with accent color
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders the light separator line in muted color
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

// RenderPassIcon renders the pass icon with styling
func RenderPassIcon() string {
	return PassStyle.Render(IconPass)
}

// RenderWarnIcon renders the warning icon with styling
func RenderWarnIcon() string {
	return WarnStyle.Render(IconWarn)
}

// RenderFailIcon renders the fail icon with styling
func RenderFailIcon() string {
	return FailStyle.Render(IconFail)
}

// StateStyle returns the style used for an issue state.
func StateStyle(s types.State) lipgloss.Style {
	switch s {
	case types.StateReady:
		return PassStyle
	case types.StateInProgress:
		return AccentStyle
	case types.StateGated:
		return GatedStyle
	case types.StateBacklog:
		return WarnStyle
	case types.StateRejected:
		return FailStyle
	default:
		return MutedStyle
	}
}

// RenderState renders text in the color of state s.
func RenderState(s types.State, text string) string {
	return StateStyle(s).Render(text)
}

// StateIcon returns a one-character indicator for a state.
func StateIcon(s types.State) string {
	if !ShouldUseEmoji() {
		return stateASCII(s)
	}
	switch s {
	case types.StateBacklog:
		return "○" // White Circle
	case types.StateReady:
		return "☐" // Ballot Box
	case types.StateInProgress:
		return "◧" // Square Left Half Black
	case types.StateGated:
		return "⧗" // Black Hourglass
	case types.StateDone:
		return "☑" // Ballot Box with Check
	case types.StateRejected:
		return "☒" // Ballot Box with X
	default:
		return "?"
	}
}

func stateASCII(s types.State) string {
	switch s {
	case types.StateBacklog:
		return "o"
	case types.StateReady:
		return "-"
	case types.StateInProgress:
		return ">"
	case types.StateGated:
		return "~"
	case types.StateDone:
		return "x"
	case types.StateRejected:
		return "!"
	default:
		return "?"
	}
}

// RenderPriority renders a priority name, bold red for critical down to
// muted for low.
func RenderPriority(p types.Priority) string {
	switch p {
	case types.PriorityCritical:
		return FailStyle.Bold(true).Render(p.String())
	case types.PriorityHigh:
		return WarnStyle.Render(p.String())
	case types.PriorityLow:
		return MutedStyle.Render(p.String())
	default:
		return p.String()
	}
}

// RenderGateStatus renders a gate status with its icon.
func RenderGateStatus(s types.GateStatus) string {
	switch s {
	case types.GatePassed:
		return PassStyle.Render(IconPass + " " + string(s))
	case types.GateFailed:
		return FailStyle.Render(IconFail + " " + string(s))
	default:
		return WarnStyle.Render(IconSkip + " " + string(s))
	}
}
