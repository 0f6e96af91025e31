// Package activity provides a scrollable log of session transitions.
package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/worktrack/agent/internal/session"
	"github.com/worktrack/agent/internal/theme"
	"github.com/worktrack/agent/internal/tracker"
)

const maxEntries = 200

// Entry kinds.
const (
	KindSession   = "sess"
	KindLive      = "live"
	KindUpload    = "up"
	KindHeartbeat = "hb"
	KindPush      = "push"
	KindError     = "err"
)

// Entry is a single log line.
type Entry struct {
	Time    time.Time
	Kind    string
	Message string
}

// Model holds the activity log.
type Model struct {
	Entries []Entry
	Offset  int // scroll offset from the bottom
}

// New creates an empty log.
func New() Model {
	return Model{}
}

// Add appends an entry and caps the buffer.
func (m *Model) Add(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	m.Entries = append(m.Entries, e)
	if len(m.Entries) > maxEntries {
		m.Entries = m.Entries[len(m.Entries)-maxEntries:]
	}
	m.Offset = 0
}

func (m *Model) ScrollUp(n int) {
	m.Offset += n
	max := len(m.Entries) - 1
	if max < 0 {
		max = 0
	}
	if m.Offset > max {
		m.Offset = max
	}
}

func (m *Model) ScrollDown(n int) {
	m.Offset -= n
	if m.Offset < 0 {
		m.Offset = 0
	}
}

// Transitions lists what changed between two consecutive status updates.
func Transitions(prev, next tracker.StatusUpdate) []Entry {
	var out []Entry
	add := func(at time.Time, kind, format string, args ...any) {
		out = append(out, Entry{Time: at, Kind: kind, Message: fmt.Sprintf(format, args...)})
	}
	ps, ns := prev.Session, next.Session

	if ns.IntervalAssigned && (ns.IntervalSeconds != ps.IntervalSeconds || !ps.IntervalAssigned) {
		add(time.Time{}, KindSession, "capture interval set to %ds", ns.IntervalSeconds)
	}
	if ns.Tracking != ps.Tracking {
		if ns.Tracking {
			add(time.Time{}, KindSession, "tracking started")
		} else {
			add(time.Time{}, KindSession, "tracking stopped")
		}
	}
	if ns.LiveView != ps.LiveView {
		if ns.LiveView {
			add(time.Time{}, KindLive, "live view started")
		} else {
			add(time.Time{}, KindLive, "live view ended")
		}
	}
	if next.PushConnected != prev.PushConnected {
		if next.PushConnected {
			add(time.Time{}, KindPush, "push channel connected")
		} else {
			add(time.Time{}, KindPush, "push channel lost")
		}
	}
	if o := ns.LastUpload; o.At.After(ps.LastUpload.At) {
		add(o.At, outcomeKind(o, KindUpload), "%s", describe("screenshot upload", o))
	}
	if o := ns.LastHeartbeat; o.At.After(ps.LastHeartbeat.At) {
		add(o.At, outcomeKind(o, KindHeartbeat), "%s", describe("heartbeat", o))
	}
	if next.Notice != "" && next.Notice != prev.Notice {
		add(time.Time{}, KindError, "%s", next.Notice)
	}
	return out
}

func outcomeKind(o session.Outcome, kind string) string {
	if o.OK() {
		return kind
	}
	return KindError
}

func describe(what string, o session.Outcome) string {
	if o.OK() {
		return what + " ok"
	}
	return what + " failed: " + o.Err
}

func panelStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Width(width).
		Padding(1, 2).
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(theme.ColorBorder)
}

// View renders the log as an overlay panel.
func (m Model) View(width, height int) string {
	innerW := width - 4
	if innerW < 20 {
		innerW = 20
	}
	visibleLines := height - 6
	if visibleLines < 3 {
		visibleLines = 3
	}

	title := theme.StyleHeader.Render(" ACTIVITY ")
	help := theme.StyleDimmed.Render(fmt.Sprintf("j/k:scroll  esc:close  %d entries", len(m.Entries)))

	if len(m.Entries) == 0 {
		body := theme.StyleDimmed.Render("  Nothing has happened yet.")
		return panelStyle(innerW).Render(lipgloss.JoinVertical(lipgloss.Left, title, "", body, "", help))
	}

	end := len(m.Entries) - m.Offset
	start := end - visibleLines
	if start < 0 {
		start = 0
	}

	var lines []string
	for i := start; i < end; i++ {
		e := m.Entries[i]
		ts := theme.StyleDimmed.Render(e.Time.Format("15:04:05"))
		kind := lipgloss.NewStyle().Foreground(kindColor(e.Kind)).Width(4).Render(e.Kind)
		msg := e.Message
		if innerW > 20 && len(msg) > innerW-16 {
			msg = msg[:innerW-19] + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", ts, kind, msg))
	}

	more := ""
	if m.Offset > 0 {
		more = theme.StyleDimmed.Render(fmt.Sprintf(" ↓ %d more", m.Offset))
	}
	content := lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(lines, "\n"), more, help)
	return panelStyle(innerW).Render(content)
}

func kindColor(kind string) lipgloss.Color {
	switch kind {
	case KindSession:
		return theme.ColorTracking
	case KindLive:
		return theme.ColorLive
	case KindUpload, KindHeartbeat:
		return theme.ColorCapturing
	case KindPush:
		return theme.ColorWaiting
	case KindError:
		return theme.ColorDanger
	default:
		return theme.ColorDimmed
	}
}
