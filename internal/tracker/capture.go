package tracker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/worktrack/agent/internal/loop"
	"github.com/worktrack/agent/internal/session"
)

// CapturePhase is the capture loop's observable state.
type CapturePhase int32

const (
	CaptureIdle CapturePhase = iota
	CaptureWaiting
	CaptureCapturing
)

func (p CapturePhase) String() string {
	switch p {
	case CaptureIdle:
		return "idle"
	case CaptureWaiting:
		return "waiting"
	case CaptureCapturing:
		return "capturing"
	}
	return "unknown"
}

// captureLoop grabs and uploads a screenshot once per assigned interval,
// firing immediately on start. A reassignment observed while waiting moves
// the next capture to assignment time plus the new interval.
type captureLoop struct {
	*loop.Loop
	state     *session.State
	capturer  Capturer
	authority Authority
	emitter   *frameEmitter
	health    *healthBoard
	countdown *Presenter

	seenEpoch atomic.Uint64
	nextFire  atomic.Int64 // unix nanos
}

func newCaptureLoop(state *session.State, capturer Capturer, authority Authority, emitter *frameEmitter, health *healthBoard, countdown *Presenter, tick time.Duration, now func() time.Time) *captureLoop {
	c := &captureLoop{
		state:     state,
		capturer:  capturer,
		authority: authority,
		emitter:   emitter,
		health:    health,
		countdown: countdown,
	}
	c.Loop = loop.New("capture", c.cycle, loop.Options{
		Tick:       tick,
		Period:     c.period,
		Immediate:  true,
		Reschedule: c.reschedule,
		OnSchedule: c.onSchedule,
		Now:        now,
	})
	return c
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

func (c *captureLoop) period() time.Duration {
	interval, epoch, _ := c.state.IntervalEpoch()
	c.seenEpoch.Store(epoch)
	return seconds(interval)
}

func (c *captureLoop) reschedule(next time.Time) (time.Time, time.Duration, bool) {
	interval, epoch, assignedAt := c.state.IntervalEpoch()
	if epoch == c.seenEpoch.Load() {
		return next, 0, false
	}
	c.seenEpoch.Store(epoch)
	p := seconds(interval)
	moved := assignedAt.Add(p)
	log.Infof("capture interval now %ds, next capture at %s", interval, moved.Format(time.TimeOnly))
	return moved, p, true
}

func (c *captureLoop) onSchedule(ctx context.Context, next time.Time, period time.Duration) {
	c.nextFire.Store(next.UnixNano())
	c.countdown.Begin(ctx, next, period)
}

// NextFire returns the scheduled time of the next capture, or the zero time
// if none has been scheduled yet.
func (c *captureLoop) NextFire() time.Time {
	n := c.nextFire.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

func (c *captureLoop) CapturePhase() CapturePhase {
	switch c.Phase() {
	case loop.Running:
		return CaptureCapturing
	case loop.Waiting:
		return CaptureWaiting
	default:
		return CaptureIdle
	}
}

func (c *captureLoop) cycle(ctx context.Context) {
	full, preview, err := c.capturer.Capture(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrCaptureFailure, err)
		log.Warningf("screenshot skipped: %v", err)
		c.health.recordFailure(SubsystemCapture, err)
		c.state.RecordUpload(err)
		return
	}
	c.health.recordSuccess(SubsystemCapture)

	if err := c.authority.UploadScreenshot(ctx, full); err != nil {
		err = fmt.Errorf("%w: upload: %w", ErrTransportFailure, err)
		log.Warningf("screenshot upload failed: %v", err)
		c.health.recordFailure(SubsystemUpload, err)
		c.state.RecordUpload(err)
	} else {
		log.Infof("screenshot uploaded (%d bytes)", len(full))
		c.health.recordSuccess(SubsystemUpload)
		c.state.RecordUpload(nil)
	}

	c.emitter.Offer(preview)
}
