// Package app is the root Bubble Tea model of the agent's terminal UI.
package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/worktrack/agent/internal/theme"
	"github.com/worktrack/agent/internal/tracker"
	"github.com/worktrack/agent/internal/views/activity"
	"github.com/worktrack/agent/internal/views/consent"
	"github.com/worktrack/agent/internal/views/countdown"
	"github.com/worktrack/agent/internal/views/status"
)

// Overlay identifies which modal is active.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayNotice
	OverlayActivity
)

// Controller is the part of the coordinator the UI drives.
type Controller interface {
	Enqueue(tracker.Event) error
	Status() tracker.StatusUpdate
}

// Info is static context shown alongside the live status.
type Info struct {
	EmployeeID        string
	AgentID           string
	HeartbeatSeconds  int
	PreviewResolution string
	NoticeStyle       string
}

type statusMsg tracker.StatusUpdate

type updatesClosedMsg struct{}

// Model is the root Bubble Tea model.
type Model struct {
	ctrl    Controller
	updates <-chan tracker.StatusUpdate
	info    Info

	keys   KeyMap
	help   help.Model
	width  int
	height int

	last    tracker.StatusUpdate
	seen    bool
	overlay Overlay
	flash   string

	statusBar status.Model
	countdown countdown.Model
	activity  activity.Model
	notice    consent.Model
}

// New creates the root model. updates is typically the channel returned by
// the coordinator's Subscribe.
func New(ctrl Controller, updates <-chan tracker.StatusUpdate, info Info) Model {
	return Model{
		ctrl:      ctrl,
		updates:   updates,
		info:      info,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		statusBar: status.New(),
		countdown: countdown.New(),
		activity:  activity.New(),
		notice:    consent.New(info.NoticeStyle),
	}
}

// Init loads the current status and starts listening for updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.fetchStatus(), waitForStatus(m.updates))
}

func (m Model) fetchStatus() tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		return statusMsg(ctrl.Status())
	}
}

func waitForStatus(ch <-chan tracker.StatusUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return updatesClosedMsg{}
		}
		return statusMsg(u)
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusBar.Width = msg.Width
		m.countdown.Width = msg.Width
		m.help.Width = msg.Width
		m.notice.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case statusMsg:
		cmd := m.applyStatus(tracker.StatusUpdate(msg))
		return m, tea.Batch(cmd, waitForStatus(m.updates))

	case updatesClosedMsg:
		return m, tea.Quit

	case countdown.FrameMsg:
		var cmd tea.Cmd
		m.countdown, cmd = m.countdown.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) applyStatus(u tracker.StatusUpdate) tea.Cmd {
	if m.seen {
		for _, e := range activity.Transitions(m.last, u) {
			m.activity.Add(e)
		}
	}
	m.last = u
	m.seen = true
	m.statusBar.Apply(u)
	m.notice.SetFacts(consent.Facts{
		EmployeeID:        m.info.EmployeeID,
		IntervalSeconds:   u.Session.IntervalSeconds,
		LiveView:          u.Session.LiveView,
		HeartbeatSeconds:  m.info.HeartbeatSeconds,
		PreviewResolution: m.info.PreviewResolution,
	})
	return m.countdown.Set(u.Countdown, u.Session.Tracking)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.overlay != OverlayNone {
		switch {
		case key.Matches(msg, m.keys.Escape):
			m.overlay = OverlayNone
		case key.Matches(msg, m.keys.Up):
			m.scroll(-1)
		case key.Matches(msg, m.keys.Down):
			m.scroll(1)
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Start):
		m.enqueue(tracker.Event{Kind: tracker.EventStart})
	case key.Matches(msg, m.keys.Stop):
		m.enqueue(tracker.Event{Kind: tracker.EventStop})
	case key.Matches(msg, m.keys.DisableLive):
		m.enqueue(tracker.Event{Kind: tracker.EventDisableLiveView})
	case key.Matches(msg, m.keys.Notice):
		m.overlay = OverlayNotice
	case key.Matches(msg, m.keys.Activity):
		m.overlay = OverlayActivity
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m *Model) scroll(dir int) {
	switch m.overlay {
	case OverlayActivity:
		// The log scrolls from the bottom.
		if dir < 0 {
			m.activity.ScrollUp(1)
		} else {
			m.activity.ScrollDown(1)
		}
	case OverlayNotice:
		if dir < 0 {
			m.notice.ScrollUp(1)
		} else {
			m.notice.ScrollDown(1)
		}
	}
}

func (m *Model) enqueue(ev tracker.Event) {
	if err := m.ctrl.Enqueue(ev); err != nil {
		m.flash = fmt.Sprintf("%s: %v", ev.Kind, err)
		return
	}
	m.flash = ""
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	switch m.overlay {
	case OverlayNotice:
		return m.notice.View()
	case OverlayActivity:
		return m.activity.View(m.width, m.height)
	}

	sections := []string{
		m.statusBar.View(),
		m.renderIdentity(),
		"",
		m.countdown.View(),
		"",
		m.renderPhases(),
		m.renderOutcomes(),
	}
	if m.last.Notice != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.ColorWarning).Render("  "+m.last.Notice))
	}
	if m.flash != "" {
		sections = append(sections, lipgloss.NewStyle().Foreground(theme.ColorDanger).Render("  "+m.flash))
	}
	sections = append(sections, "", "  "+m.help.View(m.keys))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderIdentity() string {
	s := "  " + theme.StyleHeader.Render(m.info.EmployeeID)
	if m.info.AgentID != "" {
		s += theme.StyleDimmed.Render("  agent " + shortID(m.info.AgentID))
	}
	return s
}

func (m Model) renderPhases() string {
	capture := m.last.Capture.String()
	live := m.last.Live.String()
	return fmt.Sprintf("  capture %s  live %s",
		phaseBadge(capture), phaseBadge(live))
}

func phaseBadge(phase string) string {
	return lipgloss.NewStyle().Foreground(theme.PhaseColor(phase)).
		Render(theme.PhaseGlyph(phase) + " " + phase)
}

func (m Model) renderOutcomes() string {
	s := m.last.Session
	return fmt.Sprintf("  %s  %s",
		outcomeLine("upload", s.LastUpload.At, s.LastUpload.Err),
		outcomeLine("heartbeat", s.LastHeartbeat.At, s.LastHeartbeat.Err))
}

func outcomeLine(what string, at time.Time, errMsg string) string {
	switch {
	case at.IsZero():
		return theme.StyleDimmed.Render(what + " -")
	case errMsg != "":
		return lipgloss.NewStyle().Foreground(theme.ColorDanger).
			Render(fmt.Sprintf("%s failed %s", what, at.Local().Format("15:04:05")))
	default:
		return lipgloss.NewStyle().Foreground(theme.ColorHealthy).
			Render(fmt.Sprintf("%s ok %s", what, at.Local().Format("15:04:05")))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
