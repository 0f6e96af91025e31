package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/worktrack/agent/internal/theme"
	"github.com/worktrack/agent/internal/tracker"
)

// Model holds the status bar state.
type Model struct {
	Connected bool
	Tracking  bool
	LiveView  bool
	Interval  int
	Health    map[tracker.Subsystem]tracker.HealthReport
	Width     int
}

// New creates a status bar model.
func New() Model {
	return Model{
		Health: make(map[tracker.Subsystem]tracker.HealthReport),
	}
}

// Apply copies the fields the bar renders from a coordinator update.
func (m *Model) Apply(u tracker.StatusUpdate) {
	m.Connected = u.PushConnected
	m.Tracking = u.Session.Tracking
	m.LiveView = u.Session.LiveView
	m.Interval = u.Session.IntervalSeconds
	if u.Health != nil {
		m.Health = u.Health
	}
}

// View renders the status bar.
func (m Model) View() string {
	width := m.Width
	if width < 40 {
		width = 40
	}

	var connStr string
	if m.Connected {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorHealthy).Render("● Connected")
	} else {
		connStr = lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("○ Connecting...")
	}

	var sessStr string
	if m.Tracking {
		sessStr = lipgloss.NewStyle().Foreground(theme.ColorTracking).Render("Tracking")
	} else {
		sessStr = lipgloss.NewStyle().Foreground(theme.ColorStopped).Render("Stopped")
	}
	sessStr += theme.StyleDimmed.Render(fmt.Sprintf(" every %ds", m.Interval))
	if m.LiveView {
		sessStr += " " + theme.StyleLiveBadge.Render("LIVE")
	}

	// Only subsystems that have failed at least once are worth the space.
	var healthParts []string
	for _, s := range tracker.Subsystems() {
		h, ok := m.Health[s]
		if !ok || h.Status == tracker.StatusHealthy {
			continue
		}
		healthParts = append(healthParts, lipgloss.NewStyle().
			Foreground(theme.HealthColor(string(h.Status))).
			Render(fmt.Sprintf("%s: %s", s, h.Status)))
	}
	healthStr := strings.Join(healthParts, "  ")

	sep := lipgloss.NewStyle().Foreground(theme.ColorBorder).Render(" | ")
	content := connStr + sep + sessStr
	if healthStr != "" {
		content += sep + healthStr
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(content)
}
