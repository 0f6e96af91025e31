package tracker

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/worktrack/agent/internal/loop"
	"github.com/worktrack/agent/internal/push"
	"github.com/worktrack/agent/internal/session"
)

// LivePhase is the live-stream loop's observable state.
type LivePhase int32

const (
	LiveIdle LivePhase = iota
	LiveSleeping
	LiveStreaming
)

func (p LivePhase) String() string {
	switch p {
	case LiveIdle:
		return "idle"
	case LiveSleeping:
		return "sleeping"
	case LiveStreaming:
		return "streaming"
	}
	return "unknown"
}

// frameEmitter sends preview frames over the push channel while live view
// is active. It is shared by the capture and live-stream loops.
type frameEmitter struct {
	state      *session.State
	live       LiveChannel
	health     *healthBoard
	employeeID string
	now        func() time.Time
	sent       atomic.Int64
}

// Offer emits preview as a live frame if live view is active. It reports
// whether a frame was sent.
func (e *frameEmitter) Offer(preview []byte) bool {
	if !e.state.LiveView() || len(preview) == 0 {
		return false
	}
	if e.live == nil {
		e.fail(ErrConnectionFailure)
		return false
	}
	frame := push.Frame{
		EmployeeID:  e.employeeID,
		FrameBase64: base64.StdEncoding.EncodeToString(preview),
		TS:          e.now().UTC().Format(time.RFC3339Nano),
	}
	if err := e.live.SendFrame(frame); err != nil {
		e.fail(fmt.Errorf("%w: live frame: %w", ErrTransportFailure, err))
		return false
	}
	e.sent.Add(1)
	e.health.recordSuccess(SubsystemLive)
	e.state.RecordLiveFrame(nil)
	return true
}

func (e *frameEmitter) fail(err error) {
	log.Debugf("live frame dropped: %v", err)
	e.health.recordFailure(SubsystemLive, err)
	e.state.RecordLiveFrame(err)
}

// liveLoop streams previews at a fixed cadence while live view is active.
// While inactive the loop keeps polling but does no work.
type liveLoop struct {
	*loop.Loop
	state    *session.State
	capturer Capturer
	emitter  *frameEmitter
	health   *healthBoard

	streaming atomic.Bool
}

func newLiveLoop(state *session.State, capturer Capturer, emitter *frameEmitter, health *healthBoard, interval, tick time.Duration, now func() time.Time) *liveLoop {
	l := &liveLoop{state: state, capturer: capturer, emitter: emitter, health: health}
	l.Loop = loop.New("live", l.cycle, loop.Options{
		Tick:      tick,
		Period:    loop.Fixed(interval),
		Immediate: true,
		Now:       now,
	})
	return l
}

func (l *liveLoop) cycle(ctx context.Context) {
	if !l.state.LiveView() {
		return
	}
	l.streaming.Store(true)
	defer l.streaming.Store(false)

	preview, err := l.capturer.CapturePreview(ctx)
	if err != nil {
		err = fmt.Errorf("%w: live preview: %w", ErrCaptureFailure, err)
		log.Debugf("live frame skipped: %v", err)
		l.health.recordFailure(SubsystemCapture, err)
		l.state.RecordLiveFrame(err)
		return
	}
	l.emitter.Offer(preview)
}

// LivePhase reports whether the loop is idle, sleeping between frames or
// streaming one.
func (l *liveLoop) LivePhase() LivePhase {
	switch {
	case !l.Alive():
		return LiveIdle
	case l.streaming.Load():
		return LiveStreaming
	default:
		return LiveSleeping
	}
}
