package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStateDefaults(t *testing.T) {
	s := NewState(0)
	snap := s.Snapshot()

	assert.Equal(t, DefaultIntervalSeconds, snap.IntervalSeconds)
	assert.False(t, snap.IntervalAssigned)
	assert.False(t, snap.Tracking)
	assert.False(t, snap.LiveView)
	assert.True(t, snap.LastUpload.IsZero())
}

func TestNewStateUsesConfiguredInterval(t *testing.T) {
	s := NewState(45)
	assert.Equal(t, 45, s.Interval())
}

func TestAssignIntervalRejectsNonPositive(t *testing.T) {
	s := NewState(60)

	for _, v := range []int{0, -1, -300} {
		err := s.AssignInterval(v)
		assert.ErrorIs(t, err, ErrInvalidInterval, "AssignInterval(%d)", v)
	}
	assert.Equal(t, 60, s.Interval(), "rejected assignment must not change the interval")
	assert.False(t, s.IntervalAssigned())
}

func TestAssignIntervalBumpsEpoch(t *testing.T) {
	s := NewState(60)
	at := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return at })

	_, epoch0, _ := s.IntervalEpoch()
	require.NoError(t, s.AssignInterval(300))

	interval, epoch1, assignedAt := s.IntervalEpoch()
	assert.Equal(t, 300, interval)
	assert.Equal(t, epoch0+1, epoch1)
	assert.Equal(t, at, assignedAt)
	assert.True(t, s.IntervalAssigned())
}

func TestBeginTrackingRequiresAssignment(t *testing.T) {
	s := NewState(60)

	started, err := s.BeginTracking()
	assert.ErrorIs(t, err, ErrNotAuthorized)
	assert.False(t, started)
	assert.False(t, s.Tracking())
}

func TestBeginTrackingTwiceIsNoop(t *testing.T) {
	s := NewState(60)
	require.NoError(t, s.AssignInterval(120))

	started, err := s.BeginTracking()
	require.NoError(t, err)
	assert.True(t, started)

	started, err = s.BeginTracking()
	require.NoError(t, err)
	assert.False(t, started, "second BeginTracking should report no transition")
}

func TestEndTrackingForcesLiveOff(t *testing.T) {
	s := NewState(60)
	require.NoError(t, s.AssignInterval(120))
	_, err := s.BeginTracking()
	require.NoError(t, err)
	_, err = s.SetLiveView(true)
	require.NoError(t, err)

	wasTracking, liveWasActive := s.EndTracking()
	assert.True(t, wasTracking)
	assert.True(t, liveWasActive)
	assert.False(t, s.LiveView())
	assert.False(t, s.Tracking())

	wasTracking, liveWasActive = s.EndTracking()
	assert.False(t, wasTracking)
	assert.False(t, liveWasActive)
}

func TestLiveViewRefusedWhileStopped(t *testing.T) {
	s := NewState(60)

	changed, err := s.SetLiveView(true)
	assert.ErrorIs(t, err, ErrNotTracking)
	assert.False(t, changed)
	assert.False(t, s.LiveView())

	// Deactivation is always accepted.
	changed, err = s.SetLiveView(false)
	assert.NoError(t, err)
	assert.False(t, changed)
}

func TestDisableLiveView(t *testing.T) {
	s := NewState(60)
	require.NoError(t, s.AssignInterval(60))
	_, _ = s.BeginTracking()
	_, _ = s.SetLiveView(true)

	assert.True(t, s.DisableLiveView())
	assert.False(t, s.DisableLiveView(), "second disable should report it was already off")
}

func TestRecordOutcomes(t *testing.T) {
	s := NewState(60)
	at := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	s.SetClock(func() time.Time { return at })

	s.RecordUpload(nil)
	s.RecordLiveFrame(errors.New("socket closed"))
	s.RecordHeartbeat(nil)

	snap := s.Snapshot()
	assert.True(t, snap.LastUpload.OK())
	assert.Equal(t, at, snap.LastUpload.At)
	assert.False(t, snap.LastLiveFrame.OK())
	assert.Equal(t, "socket closed", snap.LastLiveFrame.Err)
	assert.True(t, snap.LastHeartbeat.OK())
}

func TestStateConcurrentAccess(t *testing.T) {
	s := NewState(60)
	require.NoError(t, s.AssignInterval(60))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_ = s.AssignInterval(1 + (i+j)%10)
				_, _ = s.BeginTracking()
				_, _ = s.SetLiveView(j%2 == 0)
				s.RecordUpload(nil)
				_ = s.Snapshot()
				if j%50 == 0 {
					s.EndTracking()
				}
			}
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Greater(t, snap.IntervalSeconds, 0)
	if snap.LiveView {
		assert.True(t, snap.Tracking, "live view must never be set while stopped")
	}
}
