// Package countdown renders the time left until the next capture as a
// spring-animated progress bar.
package countdown

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/harmonica"
	"github.com/charmbracelet/lipgloss"
	"github.com/worktrack/agent/internal/theme"
	"github.com/worktrack/agent/internal/tracker"
)

const (
	fps       = 30
	frequency = 6.0
	damping   = 1.0
	settled   = 0.001
)

// FrameMsg advances the bar animation by one frame.
type FrameMsg struct{}

// Model holds the countdown bar state.
type Model struct {
	bar    progress.Model
	spring harmonica.Spring

	pos, vel, target float64
	animating        bool

	Countdown tracker.Countdown
	Tracking  bool
	Width     int
}

// New creates a countdown bar.
func New() Model {
	return Model{
		bar: progress.New(
			progress.WithGradient(theme.ColorCountdownStart, theme.ColorCountdownEnd),
			progress.WithoutPercentage(),
		),
		spring: harmonica.NewSpring(harmonica.FPS(fps), frequency, damping),
	}
}

// Set records a new countdown and returns the command that animates the bar
// towards it, or nil when no animation is needed.
func (m *Model) Set(cd tracker.Countdown, tracking bool) tea.Cmd {
	m.Countdown = cd
	m.Tracking = tracking
	m.target = cd.Fraction()
	if !tracking {
		m.target = 0
	}

	// A new cycle starts from empty; animating backwards reads as a glitch.
	if m.target < m.pos-0.5 {
		m.pos, m.vel = m.target, 0
	}
	if m.animating || m.isSettled() {
		return nil
	}
	m.animating = true
	return frame()
}

// Update advances the animation on FrameMsg.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if _, ok := msg.(FrameMsg); !ok {
		return m, nil
	}
	m.pos, m.vel = m.spring.Update(m.pos, m.vel, m.target)
	if m.isSettled() {
		m.pos, m.vel = m.target, 0
		m.animating = false
		return m, nil
	}
	return m, frame()
}

// Position is the fraction currently drawn.
func (m Model) Position() float64 {
	return m.pos
}

func (m Model) isSettled() bool {
	return math.Abs(m.pos-m.target) < settled && math.Abs(m.vel) < settled
}

// View renders the caption and bar.
func (m Model) View() string {
	width := m.Width - 4
	if width < 20 {
		width = 20
	}
	m.bar.Width = width

	var caption string
	switch {
	case !m.Tracking:
		caption = theme.StyleDimmed.Render("Tracking stopped")
	case m.Countdown.Interval <= 0:
		caption = theme.StyleDimmed.Render("Waiting for schedule...")
	case m.Countdown.Remaining <= 0:
		caption = lipgloss.NewStyle().Foreground(theme.ColorCapturing).Render("Capturing...")
	default:
		caption = theme.StyleHeader.Render("Next capture in ") +
			lipgloss.NewStyle().Foreground(theme.ColorBright).Render(FormatRemaining(m.Countdown.Remaining))
	}

	pos := m.pos
	if pos < 0 {
		pos = 0
	} else if pos > 1 {
		pos = 1
	}
	return lipgloss.JoinVertical(lipgloss.Left, "  "+caption, "  "+m.bar.ViewAs(pos))
}

// FormatRemaining renders d as mm:ss, or h:mm:ss past an hour.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Round(time.Second).Seconds())
	h, s := s/3600, s%3600
	mm, ss := s/60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mm, ss)
	}
	return fmt.Sprintf("%02d:%02d", mm, ss)
}

func frame() tea.Cmd {
	return tea.Tick(time.Second/fps, func(time.Time) tea.Msg {
		return FrameMsg{}
	})
}
