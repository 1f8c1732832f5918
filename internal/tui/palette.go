package tui

import (
	"github.com/charmbracelet/lipgloss"

	"crunch/internal/registry"
	"crunch/internal/session"
)

// Each colour has a light and a dark variant; lipgloss picks one from the
// terminal background.
var (
	ColorInk       = lipgloss.AdaptiveColor{Light: "#1F2933", Dark: "#F0F4F8"}
	ColorDim       = lipgloss.AdaptiveColor{Light: "#616E7C", Dark: "#9AA5B1"}
	ColorAccent    = lipgloss.AdaptiveColor{Light: "#0B6E4F", Dark: "#6EE7B7"}
	ColorAccentAlt = lipgloss.AdaptiveColor{Light: "#5B21B6", Dark: "#C4B5FD"}
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#166534", Dark: "#86EFAC"}
	ColorWarn      = lipgloss.AdaptiveColor{Light: "#A16207", Dark: "#FDE68A"}
	ColorError     = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#FCA5A5"}
)

func statusColor(s registry.Status) lipgloss.AdaptiveColor {
	switch s {
	case registry.StatusProcessing:
		return ColorAccent
	case registry.StatusCompleted:
		return ColorSuccess
	case registry.StatusError:
		return ColorError
	default:
		return ColorDim
	}
}

func stateColor(s session.State) lipgloss.AdaptiveColor {
	switch s {
	case session.StateProcessing:
		return ColorAccent
	case session.StateCompleted:
		return ColorSuccess
	case session.StateError:
		return ColorError
	default:
		return ColorDim
	}
}

var statusMarks = map[registry.Status]string{
	registry.StatusPending:    "·",
	registry.StatusProcessing: "›",
	registry.StatusCompleted:  "✓",
	registry.StatusError:      "✗",
}

func statusMark(s registry.Status) string {
	return lipgloss.NewStyle().Foreground(statusColor(s)).Render(statusMarks[s] + " ")
}
