package tracker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/worktrack/agent/internal/loop"
	"github.com/worktrack/agent/internal/session"
)

// IdleDelta returns the idle seconds gained between two samples of the time
// since last user input. Input in between resets the counter and yields zero.
func IdleDelta(prev, cur int64) int64 {
	if d := cur - prev; d > 0 {
		return d
	}
	return 0
}

// heartbeatLoop reports idle-time deltas to the authority once per period.
// The baseline is sampled when the loop goroutine starts, so the first report
// covers one period.
type heartbeatLoop struct {
	*loop.Loop
	state    *session.State
	idle     IdleSource
	reporter Authority
	health   *healthBoard

	baseline atomic.Int64
}

func newHeartbeatLoop(state *session.State, idle IdleSource, reporter Authority, health *healthBoard, interval, tick time.Duration, now func() time.Time) *heartbeatLoop {
	h := &heartbeatLoop{state: state, idle: idle, reporter: reporter, health: health}
	h.Loop = loop.New("heartbeat", h.cycle, loop.Options{
		Tick:    tick,
		Period:  loop.Fixed(interval),
		Now:     now,
		OnStart: h.prime,
	})
	return h
}

func (h *heartbeatLoop) prime(ctx context.Context) {
	h.baseline.Store(h.sample(ctx))
}

func (h *heartbeatLoop) sample(ctx context.Context) int64 {
	if h.idle == nil {
		return 0
	}
	v, err := h.idle.IdleSeconds(ctx)
	if err != nil {
		log.Debugf("idle sample unavailable: %v", err)
		return 0
	}
	return v
}

func (h *heartbeatLoop) cycle(ctx context.Context) {
	cur := h.sample(ctx)
	delta := IdleDelta(h.baseline.Swap(cur), cur)

	if err := h.reporter.Heartbeat(ctx, delta); err != nil {
		err = fmt.Errorf("%w: heartbeat: %w", ErrTransportFailure, err)
		log.Warningf("heartbeat failed: %v", err)
		h.health.recordFailure(SubsystemHeartbeat, err)
		h.state.RecordHeartbeat(err)
		return
	}
	log.Debugf("heartbeat sent (idle +%ds)", delta)
	h.health.recordSuccess(SubsystemHeartbeat)
	h.state.RecordHeartbeat(nil)
}
