package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleDeltaNeverNegative(t *testing.T) {
	cases := []struct {
		prev, cur, want int64
	}{
		{0, 0, 0},
		{10, 25, 15},
		{300, 2, 0}, // user became active, counter reset
		{5, 5, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IdleDelta(tc.prev, tc.cur), "IdleDelta(%d, %d)", tc.prev, tc.cur)
	}
}

func TestHeartbeatReportsDeltasAgainstBaseline(t *testing.T) {
	state := trackingState(t)
	auth := &fakeAuthority{}
	idle := &fakeIdle{samples: []int64{10, 40, 5, 65}}
	h := newHeartbeatLoop(state, idle, auth, newHealthBoard(3, time.Now), 10*time.Millisecond, testTick, time.Now)

	require.True(t, h.Start(context.Background()))
	waitFor(t, time.Second, func() bool { return len(auth.reported()) >= 3 }, "three heartbeats")
	h.Stop()
	h.Wait()

	// Baseline 10: then 40 (+30), 5 (reset, 0), 65 (+60).
	assert.Equal(t, []int64{30, 0, 60}, auth.reported()[:3])
	assert.True(t, state.Snapshot().LastHeartbeat.OK())
}

func TestHeartbeatWaitsOnePeriodBeforeFirstReport(t *testing.T) {
	state := trackingState(t)
	auth := &fakeAuthority{}
	h := newHeartbeatLoop(state, &fakeIdle{}, auth, newHealthBoard(3, time.Now), time.Hour, testTick, time.Now)

	h.Start(context.Background())
	defer h.Stop()
	time.Sleep(10 * testTick)
	assert.Empty(t, auth.reported())
}

func TestHeartbeatBaselineAdvancesOnReportFailure(t *testing.T) {
	state := trackingState(t)
	auth := &fakeAuthority{reportErr: errors.New("offline")}
	health := newHealthBoard(3, time.Now)
	idle := &fakeIdle{samples: []int64{0, 20, 50}}
	h := newHeartbeatLoop(state, idle, auth, health, 10*time.Millisecond, testTick, time.Now)

	h.Start(context.Background())
	waitFor(t, time.Second, func() bool { return len(auth.reported()) >= 2 }, "two attempts")
	h.Stop()
	h.Wait()

	// Failed reports still move the baseline: 0 -> 20 -> 50.
	assert.Equal(t, []int64{20, 30}, auth.reported()[:2])
	assert.NotEqual(t, StatusHealthy, health.status(SubsystemHeartbeat))
	assert.False(t, state.Snapshot().LastHeartbeat.OK())
}

func TestHeartbeatIdleReadFailureSamplesZero(t *testing.T) {
	state := trackingState(t)
	auth := &fakeAuthority{}
	h := newHeartbeatLoop(state, &fakeIdle{err: errors.New("xprintidle missing")}, auth, newHealthBoard(3, time.Now), 10*time.Millisecond, testTick, time.Now)

	h.Start(context.Background())
	waitFor(t, time.Second, func() bool { return len(auth.reported()) >= 1 }, "heartbeat despite idle failure")
	h.Stop()
	h.Wait()
	assert.Equal(t, int64(0), auth.reported()[0])
}

func TestHeartbeatStartTwiceIsNoop(t *testing.T) {
	h := newHeartbeatLoop(trackingState(t), &fakeIdle{}, &fakeAuthority{}, newHealthBoard(3, time.Now), time.Hour, testTick, time.Now)
	assert.True(t, h.Start(context.Background()))
	assert.False(t, h.Start(context.Background()))
	h.Stop()
}

func TestHeartbeatStartDoesNotBlockOnIdleSource(t *testing.T) {
	idle := &blockingIdle{release: make(chan struct{})}
	h := newHeartbeatLoop(trackingState(t), idle, &fakeAuthority{}, newHealthBoard(3, time.Now), time.Hour, testTick, time.Now)

	returned := make(chan bool, 1)
	go func() { returned <- h.Start(context.Background()) }()
	select {
	case ok := <-returned:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("Start waited for the idle sample")
	}
	assert.True(t, h.Alive())

	close(idle.release)
	h.Stop()
	h.Wait()
}
