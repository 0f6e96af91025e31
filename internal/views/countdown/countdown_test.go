package countdown

import (
	"strings"
	"testing"
	"time"

	"github.com/worktrack/agent/internal/tracker"
)

func TestFormatRemaining(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "00:00"},
		{-time.Second, "00:00"},
		{59 * time.Second, "00:59"},
		{299*time.Second + 600*time.Millisecond, "05:00"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1:02:03"},
	}
	for _, tt := range tests {
		if got := FormatRemaining(tt.in); got != tt.want {
			t.Errorf("FormatRemaining(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSetStartsAnimationOnce(t *testing.T) {
	m := New()
	cd := tracker.Countdown{Interval: 100 * time.Second, Remaining: 50 * time.Second, Elapsed: 50 * time.Second}

	if cmd := m.Set(cd, true); cmd == nil {
		t.Fatal("expected an animation command for a new target")
	}
	if cmd := m.Set(cd, true); cmd != nil {
		t.Error("second Set while animating should not start another frame loop")
	}
}

func TestAnimationSettlesOnTarget(t *testing.T) {
	m := New()
	cd := tracker.Countdown{Interval: 100 * time.Second, Remaining: 25 * time.Second, Elapsed: 75 * time.Second}
	m.Set(cd, true)

	var cmd = frame()
	for i := 0; i < 10*fps && cmd != nil; i++ {
		m, cmd = m.Update(FrameMsg{})
	}
	if cmd != nil {
		t.Fatal("animation did not settle")
	}
	if got := m.Position(); got != 0.75 {
		t.Errorf("Position() = %v, want 0.75", got)
	}
}

func TestNewCycleSnapsBack(t *testing.T) {
	m := New()
	m.pos = 0.95
	m.Set(tracker.Countdown{Interval: time.Minute, Remaining: time.Minute}, true)
	if m.Position() != 0 {
		t.Errorf("bar should snap to empty on a new cycle, got %v", m.Position())
	}
}

func TestViewCaptions(t *testing.T) {
	m := New()
	m.Width = 80
	if v := m.View(); !strings.Contains(v, "Tracking stopped") {
		t.Error("stopped caption missing")
	}

	m.Set(tracker.Countdown{Interval: 3 * time.Minute, Remaining: 135 * time.Second, Elapsed: 45 * time.Second}, true)
	if v := m.View(); !strings.Contains(v, "02:15") {
		t.Errorf("view should show remaining time, got:\n%s", v)
	}

	m.Set(tracker.Countdown{Interval: 3 * time.Minute, Elapsed: 3 * time.Minute}, true)
	if v := m.View(); !strings.Contains(v, "Capturing") {
		t.Error("zero remaining should read as capturing")
	}
}
