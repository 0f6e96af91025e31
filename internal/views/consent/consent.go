// Package consent renders the monitoring disclosure shown to the employee.
package consent

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/worktrack/agent/internal/theme"
)

// DefaultStyle is the glamour style used outside tests.
const DefaultStyle = "dark"

// Facts are the details the disclosure states.
type Facts struct {
	EmployeeID        string
	IntervalSeconds   int
	LiveView          bool
	HeartbeatSeconds  int
	PreviewResolution string
}

// Markdown builds the disclosure text.
func Markdown(f Facts) string {
	var b strings.Builder
	b.WriteString("# Work tracking is active\n\n")
	fmt.Fprintf(&b, "This agent is signed in as **%s**.\n\n", f.EmployeeID)
	b.WriteString("While tracking is running:\n\n")
	fmt.Fprintf(&b, "- A screenshot of your screen is uploaded every **%d seconds**.\n", f.IntervalSeconds)
	fmt.Fprintf(&b, "- Your idle time is reported every **%d seconds**. No keystrokes or window titles are collected.\n", f.HeartbeatSeconds)
	if f.PreviewResolution != "" {
		fmt.Fprintf(&b, "- A supervisor may open a live view, streaming a %s preview of your screen.\n", f.PreviewResolution)
	} else {
		b.WriteString("- A supervisor may open a live view, streaming a low-resolution preview of your screen.\n")
	}
	b.WriteString("\n")
	if f.LiveView {
		b.WriteString("> **Live view is on right now.** Press `l` to end it.\n\n")
	}
	b.WriteString("Press `x` to stop tracking at any time. Stopping is reported to your employer.\n")
	return b.String()
}

// Render turns the disclosure into styled terminal text.
func Render(f Facts, style string, width int) (string, error) {
	if width < 20 {
		width = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("create renderer: %w", err)
	}
	out, err := r.Render(Markdown(f))
	if err != nil {
		return "", fmt.Errorf("render disclosure: %w", err)
	}
	return out, nil
}

// Model is the scrollable disclosure overlay.
type Model struct {
	Style    string
	facts    Facts
	viewport viewport.Model
	width    int
	height   int
	err      error
}

// New creates the overlay using style for rendering.
func New(style string) Model {
	if style == "" {
		style = DefaultStyle
	}
	return Model{Style: style, viewport: viewport.New(0, 0)}
}

// SetFacts re-renders the disclosure when its facts change.
func (m *Model) SetFacts(f Facts) {
	if f == m.facts && m.viewport.TotalLineCount() > 0 {
		return
	}
	m.facts = f
	m.render()
}

// SetSize sizes the overlay to the terminal.
func (m *Model) SetSize(width, height int) {
	m.width, m.height = width, height
	m.viewport.Width = width - 8
	m.viewport.Height = height - 8
	if m.viewport.Height < 3 {
		m.viewport.Height = 3
	}
	m.render()
}

func (m *Model) render() {
	out, err := Render(m.facts, m.Style, m.viewport.Width)
	m.err = err
	if err != nil {
		m.viewport.SetContent(Markdown(m.facts))
		return
	}
	m.viewport.SetContent(out)
}

func (m *Model) ScrollUp(n int)   { m.viewport.LineUp(n) }
func (m *Model) ScrollDown(n int) { m.viewport.LineDown(n) }

// View renders the overlay panel.
func (m Model) View() string {
	innerW := m.width - 4
	if innerW < 20 {
		innerW = 20
	}
	title := theme.StyleHeader.Render(" MONITORING NOTICE ")
	help := theme.StyleDimmed.Render("j/k:scroll  esc:close")
	return lipgloss.NewStyle().
		Width(innerW).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder).
		Render(lipgloss.JoinVertical(lipgloss.Left, title, m.viewport.View(), help))
}
