package status

import (
	"strings"
	"testing"

	"github.com/worktrack/agent/internal/session"
	"github.com/worktrack/agent/internal/tracker"
)

func TestViewDisconnectedStopped(t *testing.T) {
	m := New()
	m.Width = 120
	m.Interval = 180
	v := m.View()
	if !strings.Contains(v, "Connecting") {
		t.Error("disconnected bar should say Connecting")
	}
	if !strings.Contains(v, "Stopped") {
		t.Error("bar should show the stopped session")
	}
	if strings.Contains(v, "LIVE") {
		t.Error("LIVE badge shown without live view")
	}
}

func TestApplyTrackingLive(t *testing.T) {
	m := New()
	m.Width = 120
	m.Apply(tracker.StatusUpdate{
		Session:       session.Snapshot{IntervalSeconds: 300, Tracking: true, LiveView: true},
		PushConnected: true,
	})
	v := m.View()
	for _, want := range []string{"Connected", "Tracking", "every 300s", "LIVE"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewHidesHealthySubsystems(t *testing.T) {
	m := New()
	m.Width = 120
	m.Apply(tracker.StatusUpdate{
		Health: map[tracker.Subsystem]tracker.HealthReport{
			tracker.SubsystemCapture: {Status: tracker.StatusHealthy},
			tracker.SubsystemUpload:  {Status: tracker.StatusDegraded, ConsecutiveFailures: 1},
		},
	})
	v := m.View()
	if strings.Contains(v, "capture:") {
		t.Error("healthy subsystem should not be listed")
	}
	if !strings.Contains(v, "upload: degraded") {
		t.Error("degraded subsystem should be listed")
	}
}
