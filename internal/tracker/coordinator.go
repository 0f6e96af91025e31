// Package tracker runs the tracking session: the capture, live-stream and
// heartbeat loops, the countdown presenter, and the coordinator that starts
// and stops them in response to local commands and remote push events.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/op/go-logging"

	"github.com/worktrack/agent/internal/loop"
	"github.com/worktrack/agent/internal/session"
)

var log = logging.MustGetLogger("tracker")

const (
	defaultLiveInterval      = 2 * time.Second
	defaultHeartbeatInterval = 60 * time.Second
	defaultShutdownTimeout   = 5 * time.Second

	eventBuffer  = 32
	outboxBuffer = 16
	subBuffer    = 16
)

// Options configures a Coordinator. Zero values take defaults.
type Options struct {
	EmployeeID        string
	Tick              time.Duration
	LiveInterval      time.Duration
	HeartbeatInterval time.Duration
	CountdownStep     time.Duration
	FailureThreshold  int
	ShutdownTimeout   time.Duration
	Now               func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Tick <= 0 {
		o.Tick = loop.DefaultTick
	}
	if o.LiveInterval <= 0 {
		o.LiveInterval = defaultLiveInterval
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = defaultHeartbeatInterval
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaultShutdownTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// StatusUpdate is published to subscribers on every observable change.
type StatusUpdate struct {
	Session       session.Snapshot
	Countdown     Countdown
	Capture       CapturePhase
	Live          LivePhase
	Health        map[Subsystem]HealthReport
	PushConnected bool
	Notice        string
}

// Coordinator owns the session's loops and applies every state transition.
// Start/stop transitions are serialized; remote notifications are sent in
// order from a single outbox goroutine so no lock is held across network
// calls.
type Coordinator struct {
	opts   Options
	state  *session.State
	deps   Deps
	health *healthBoard

	emitter   *frameEmitter
	countdown *Presenter
	capture   *captureLoop
	live      *liveLoop
	heartbeat *heartbeatLoop

	mu sync.Mutex // serializes start/stop

	events chan Event

	outbox     chan func()
	outboxDone chan struct{}
	closed     chan struct{}
	closeOnce  sync.Once

	subMu         sync.Mutex
	subs          map[chan StatusUpdate]struct{}
	lastCountdown Countdown
	notice        string

	pushConnected atomic.Bool
}

// New wires a stopped coordinator around state. Call Close (or Shutdown)
// to release its outbox goroutine.
func New(state *session.State, deps Deps, opts Options) *Coordinator {
	opts.applyDefaults()
	c := &Coordinator{
		opts:       opts,
		state:      state,
		deps:       deps,
		health:     newHealthBoard(opts.FailureThreshold, opts.Now),
		events:     make(chan Event, eventBuffer),
		outbox:     make(chan func(), outboxBuffer),
		outboxDone: make(chan struct{}),
		closed:     make(chan struct{}),
		subs:       make(map[chan StatusUpdate]struct{}),
	}
	c.lastCountdown = Countdown{Interval: seconds(state.Interval()), Remaining: seconds(state.Interval())}
	c.emitter = &frameEmitter{
		state:      state,
		live:       deps.Live,
		health:     c.health,
		employeeID: opts.EmployeeID,
		now:        opts.Now,
	}
	c.countdown = NewPresenter(opts.CountdownStep, opts.Now, c.onCountdown)
	c.capture = newCaptureLoop(state, deps.Capturer, deps.Authority, c.emitter, c.health, c.countdown, opts.Tick, opts.Now)
	c.live = newLiveLoop(state, deps.Capturer, c.emitter, c.health, opts.LiveInterval, opts.Tick, opts.Now)
	c.heartbeat = newHeartbeatLoop(state, deps.Idle, deps.Authority, c.health, opts.HeartbeatInterval, opts.Tick, opts.Now)

	go c.drainOutbox()
	return c
}

// State returns the session state the coordinator drives.
func (c *Coordinator) State() *session.State { return c.state }

// Start begins tracking: all three loops are started and the authority is
// told work has started. ctx bounds the loops' lifetime. Starting a running
// session is a no-op; starting before an interval is assigned returns
// ErrNotAuthorized.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	started, err := c.state.BeginTracking()
	if err != nil {
		c.mu.Unlock()
		log.Warningf("start refused: %v", err)
		c.setNotice("Waiting for a capture interval from your manager")
		c.publish()
		return err
	}
	if !started {
		c.mu.Unlock()
		return nil
	}
	c.capture.Start(ctx)
	c.live.Start(ctx)
	c.heartbeat.Start(ctx)
	c.mu.Unlock()

	log.Infof("tracking started, capturing every %ds", c.state.Interval())
	c.setNotice("")
	c.notify(ctx, SubsystemSession, "work start", c.deps.Authority.StartWork)
	c.publish()
	return nil
}

// Stop ends tracking. The loops finish any in-flight cycle and exit within
// one tick; Stop itself does not wait for them. Live view is forced off and
// the authority is notified. Stopping a stopped session is a no-op.
func (c *Coordinator) Stop(ctx context.Context) {
	c.mu.Lock()
	wasTracking, liveWasActive := c.state.EndTracking()
	if !wasTracking {
		c.mu.Unlock()
		return
	}
	c.capture.Stop()
	c.live.Stop()
	c.heartbeat.Stop()
	c.countdown.Reset(seconds(c.state.Interval()))
	c.mu.Unlock()

	log.Info("tracking stopped")
	if liveWasActive {
		c.notify(ctx, SubsystemPush, "live view terminate", c.sendLiveTerminate)
	}
	c.notify(ctx, SubsystemSession, "work stop", c.deps.Authority.StopWork)
	c.publish()
}

// OnIntervalAssigned applies a remote interval assignment. The first valid
// assignment on a stopped session starts tracking; a running session picks
// up the new cadence at its next tick.
func (c *Coordinator) OnIntervalAssigned(ctx context.Context, intervalSeconds int) error {
	if err := c.state.AssignInterval(intervalSeconds); err != nil {
		log.Warningf("interval assignment %d ignored: %v", intervalSeconds, err)
		return fmt.Errorf("assign interval %d: %w", intervalSeconds, err)
	}
	log.Infof("capture interval assigned: %ds", intervalSeconds)
	if !c.state.Tracking() {
		return c.Start(ctx)
	}
	c.publish()
	return nil
}

// OnLiveActivationChanged applies a remote live-view toggle. Activation on
// a stopped session is refused with ErrNotTracking and the viewer is told
// the view has ended.
func (c *Coordinator) OnLiveActivationChanged(ctx context.Context, active bool) error {
	changed, err := c.state.SetLiveView(active)
	if err != nil {
		log.Warningf("live view request refused: %v", err)
		c.notify(ctx, SubsystemPush, "live view terminate", c.sendLiveTerminate)
		return err
	}
	if changed {
		if active {
			log.Info("live view started by manager")
			c.setNotice("Your manager is viewing your screen")
		} else {
			log.Info("live view ended by manager")
			c.setNotice("")
		}
	}
	c.publish()
	return nil
}

// ManualDisableLiveView turns live view off locally and tells the viewer.
func (c *Coordinator) ManualDisableLiveView(ctx context.Context) {
	if !c.state.DisableLiveView() {
		return
	}
	log.Info("live view disabled by user")
	c.setNotice("Live view disabled")
	c.notify(ctx, SubsystemPush, "live view terminate", c.sendLiveTerminate)
	c.publish()
}

// SetPushConnected records a push channel state change. Losing the channel
// ends any live view since frames can no longer reach the viewer.
func (c *Coordinator) SetPushConnected(connected bool, err error) {
	c.pushConnected.Store(connected)
	if connected {
		c.health.recordSuccess(SubsystemPush)
	} else {
		if err == nil {
			err = ErrConnectionFailure
		}
		c.health.recordFailure(SubsystemPush, fmt.Errorf("%w: %w", ErrConnectionFailure, err))
		if c.state.DisableLiveView() {
			log.Info("live view ended: push channel lost")
		}
	}
	c.publish()
}

// Shutdown stops tracking, waits for the loops to exit and flushes pending
// notifications, bounded by ctx and the configured shutdown timeout.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.Stop(ctx)
	c.capture.Wait()
	c.live.Wait()
	c.heartbeat.Wait()

	c.Close()
	timer := time.NewTimer(c.opts.ShutdownTimeout)
	defer timer.Stop()
	select {
	case <-c.outboxDone:
	case <-ctx.Done():
		log.Warning("shutdown: pending notifications abandoned")
	case <-timer.C:
		log.Warning("shutdown: timed out flushing notifications")
	}
}

// Close stops accepting notifications. Queued notifications still drain.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
}

// Health returns per-subsystem failure tracking.
func (c *Coordinator) Health() map[Subsystem]HealthReport {
	return c.health.snapshot()
}

func (c *Coordinator) sendLiveTerminate(context.Context) error {
	if c.deps.Live == nil {
		return ErrConnectionFailure
	}
	return c.deps.Live.SendLiveTerminate(c.opts.EmployeeID)
}

// notify queues a remote notification whose outcome is tracked under sub.
// Notifications outlive the caller's cancellation so a stop triggered by
// shutdown still reaches the authority.
func (c *Coordinator) notify(ctx context.Context, sub Subsystem, what string, send func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	job := func() {
		if err := send(ctx); err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrTransportFailure, what, err)
			log.Warningf("notification failed: %v", err)
			c.health.recordFailure(sub, err)
			c.publish()
			return
		}
		c.health.recordSuccess(sub)
		log.Debugf("notification sent: %s", what)
	}

	select {
	case <-c.closed:
		log.Debugf("notification dropped after close: %s", what)
	case c.outbox <- job:
	}
}

func (c *Coordinator) drainOutbox() {
	defer close(c.outboxDone)
	for {
		select {
		case job := <-c.outbox:
			job()
		case <-c.closed:
			for {
				select {
				case job := <-c.outbox:
					job()
				default:
					return
				}
			}
		}
	}
}
