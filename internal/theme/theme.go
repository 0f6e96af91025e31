// Package theme provides the Lip Gloss color palette and reusable styles
// for the agent's terminal UI. It is a leaf package with no internal
// imports to avoid import cycles.
package theme

import "github.com/charmbracelet/lipgloss"

// Session colors.
var (
	ColorTracking  = lipgloss.Color("#22c55e")
	ColorStopped   = lipgloss.Color("#6b7280")
	ColorLive      = lipgloss.Color("#dc2626")
	ColorCapturing = lipgloss.Color("#2563eb")
	ColorWaiting   = lipgloss.Color("#d97706")
	ColorIdle      = lipgloss.Color("#4b5563")
	ColorDefault   = lipgloss.Color("#9ca3af")
)

// Countdown gradient endpoints.
var (
	ColorCountdownStart = "#3b82f6"
	ColorCountdownEnd   = "#a855f7"
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorBg      = lipgloss.Color("#111827")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// HealthColor maps a subsystem health status to a color.
func HealthColor(status string) lipgloss.Color {
	switch status {
	case "healthy":
		return ColorHealthy
	case "degraded":
		return ColorWarning
	case "failed":
		return ColorDanger
	default:
		return ColorDimmed
	}
}

// PhaseColor returns the color for a loop phase name.
func PhaseColor(phase string) lipgloss.Color {
	switch phase {
	case "capturing", "streaming":
		return ColorCapturing
	case "waiting", "sleeping":
		return ColorWaiting
	case "idle":
		return ColorIdle
	default:
		return ColorDefault
	}
}

// PhaseGlyph returns a Unicode glyph representing a loop phase.
func PhaseGlyph(phase string) string {
	switch phase {
	case "capturing":
		return "●"
	case "streaming":
		return "◉"
	case "waiting", "sleeping":
		return "◌"
	case "idle":
		return "○"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder)

	StyleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
			Foreground(ColorDimmed)

	StyleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright)

	StyleLiveBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBright).
			Background(ColorLive).
			Padding(0, 1)
)
