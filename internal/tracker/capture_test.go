package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/worktrack/agent/internal/session"
)

type captureHarness struct {
	state    *session.State
	clock    *fakeClock
	capturer *fakeCapturer
	auth     *fakeAuthority
	live     *fakeLive
	health   *healthBoard
	loop     *captureLoop
}

func newCaptureHarness(t *testing.T, interval int) *captureHarness {
	t.Helper()
	h := &captureHarness{
		state: session.NewState(interval),
		clock: newFakeClock(),
		auth:  &fakeAuthority{},
		live:  &fakeLive{},
	}
	h.capturer = &fakeCapturer{clock: h.clock.Now}
	h.state.SetClock(h.clock.Now)
	require.NoError(t, h.state.AssignInterval(interval))
	h.health = newHealthBoard(3, h.clock.Now)
	emitter := &frameEmitter{state: h.state, live: h.live, health: h.health, employeeID: "e@example.com", now: h.clock.Now}
	presenter := NewPresenter(time.Hour, h.clock.Now, func(Countdown) {})
	h.loop = newCaptureLoop(h.state, h.capturer, h.auth, emitter, h.health, presenter, testTick, h.clock.Now)
	return h
}

func (h *captureHarness) start(t *testing.T) {
	t.Helper()
	require.True(t, h.loop.Start(context.Background()))
	t.Cleanup(func() {
		h.loop.Stop()
		h.loop.Wait()
	})
}

func TestCaptureFiresImmediatelyThenAfterInterval(t *testing.T) {
	h := newCaptureHarness(t, 300)
	start := h.clock.Now()
	h.start(t)

	waitFor(t, time.Second, func() bool { return !h.loop.NextFire().IsZero() }, "first capture scheduled")
	assert.Equal(t, 1, h.capturer.fullCount())
	assert.Equal(t, start.Add(300*time.Second), h.loop.NextFire())

	h.clock.Advance(299 * time.Second)
	time.Sleep(10 * testTick)
	assert.Equal(t, 1, h.capturer.fullCount(), "captured before the interval elapsed")

	h.clock.Advance(time.Second)
	waitFor(t, time.Second, func() bool { return h.capturer.fullCount() == 2 }, "second capture")

	stamps := h.capturer.captures()
	assert.Equal(t, 300*time.Second, stamps[1].Sub(stamps[0]))
}

func TestCaptureReassignmentReschedulesFromAssignmentTime(t *testing.T) {
	h := newCaptureHarness(t, 300)
	h.start(t)
	waitFor(t, time.Second, func() bool { return h.capturer.fullCount() == 1 }, "first capture")

	h.clock.Advance(100 * time.Second)
	reassignedAt := h.clock.Now()
	require.NoError(t, h.state.AssignInterval(60))

	waitFor(t, time.Second, func() bool {
		return h.loop.NextFire().Equal(reassignedAt.Add(60 * time.Second))
	}, "next fire moved to reassignment + new interval")

	h.clock.Advance(59 * time.Second)
	time.Sleep(10 * testTick)
	assert.Equal(t, 1, h.capturer.fullCount())

	h.clock.Advance(time.Second)
	waitFor(t, time.Second, func() bool { return h.capturer.fullCount() == 2 }, "capture at new cadence")
	waitFor(t, time.Second, func() bool {
		return h.loop.NextFire().Equal(h.clock.Now().Add(60 * time.Second))
	}, "following capture one new interval later")
}

func TestCaptureUploadFailureDoesNotDelayNextCycle(t *testing.T) {
	h := newCaptureHarness(t, 120)
	h.auth.failNext = 1
	h.start(t)

	waitFor(t, time.Second, func() bool { return !h.state.Snapshot().LastUpload.IsZero() }, "first upload attempted")

	snap := h.state.Snapshot()
	assert.False(t, snap.LastUpload.OK())
	assert.Contains(t, snap.LastUpload.Err, "backend unreachable")
	assert.Equal(t, StatusDegraded, h.health.status(SubsystemUpload))

	h.clock.Advance(120 * time.Second)
	waitFor(t, time.Second, func() bool {
		uploads, _, _ := h.auth.counts()
		return uploads == 2
	}, "next cycle still fires")

	waitFor(t, time.Second, func() bool { return h.state.Snapshot().LastUpload.OK() }, "upload recovered")
	assert.Equal(t, StatusHealthy, h.health.status(SubsystemUpload))
}

func TestCaptureFailureSkipsCycle(t *testing.T) {
	h := newCaptureHarness(t, 60)
	h.capturer.setErr(errors.New("no display"))
	h.start(t)

	waitFor(t, time.Second, func() bool { return !h.state.Snapshot().LastUpload.IsZero() }, "capture attempted")
	uploads, _, _ := h.auth.counts()
	assert.Zero(t, uploads, "nothing to upload after a failed capture")
	assert.Equal(t, StatusDegraded, h.health.status(SubsystemCapture))
	assert.True(t, h.loop.Alive())

	h.capturer.setErr(nil)
	h.clock.Advance(60 * time.Second)
	waitFor(t, time.Second, func() bool { return h.capturer.fullCount() == 1 }, "loop keeps running")
}

func TestCaptureOffersPreviewOnlyWhileLive(t *testing.T) {
	h := newCaptureHarness(t, 60)
	_, err := h.state.BeginTracking()
	require.NoError(t, err)
	h.start(t)

	waitFor(t, time.Second, func() bool { return h.capturer.fullCount() == 1 }, "first capture")
	assert.Zero(t, h.live.frameCount(), "frame emitted while live view inactive")

	_, err = h.state.SetLiveView(true)
	require.NoError(t, err)
	h.clock.Advance(60 * time.Second)
	waitFor(t, time.Second, func() bool { return h.live.frameCount() == 1 }, "frame emitted while live")
}

func TestCapturePhaseString(t *testing.T) {
	assert.Equal(t, "idle", CaptureIdle.String())
	assert.Equal(t, "waiting", CaptureWaiting.String())
	assert.Equal(t, "capturing", CaptureCapturing.String())
}
