// Package loop provides the cancellable polling loop every periodic task in
// the agent runs on.
//
// A Loop wakes on a coarse tick, invokes its task when the scheduled fire
// time has passed, then asks for the next period. The period is re-read after
// every invocation so callers can change cadence at runtime without
// restarting the loop. Stopping is idempotent and takes effect within one
// tick; an in-flight task is never interrupted by Stop. A run started while
// the previous one is still finishing waits for it, so two runs of the same
// Loop never overlap.
package loop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("loop")

// DefaultTick is the polling granularity used when Options.Tick is unset.
const DefaultTick = 500 * time.Millisecond

// Phase is the observable state of a Loop.
type Phase int32

const (
	Idle    Phase = iota // not started, or stopped
	Waiting              // between invocations
	Running              // task in progress
)

var phaseNames = map[Phase]string{
	Idle:    "idle",
	Waiting: "waiting",
	Running: "running",
}

func (p Phase) String() string {
	if s, ok := phaseNames[p]; ok {
		return s
	}
	return "unknown"
}

// Task is one unit of periodic work. Tasks handle and log their own errors;
// a task never stops the loop that drives it.
type Task func(ctx context.Context)

// Options configures a Loop.
type Options struct {
	// Tick is the polling granularity. Defaults to DefaultTick.
	Tick time.Duration

	// Period returns the delay until the next invocation. It is called once
	// when the loop starts and again after every invocation.
	Period func() time.Duration

	// Immediate fires the first invocation as soon as the loop starts
	// instead of one period later.
	Immediate bool

	// Reschedule, when set, is consulted on every tick while waiting. It may
	// move the pending fire time, returning the new time, the period it
	// represents and ok=true.
	Reschedule func(next time.Time) (time.Time, time.Duration, bool)

	// OnSchedule observes every newly computed fire time. ctx is the loop's
	// stop signal; it is already cancelled if the loop is stopping.
	OnSchedule func(ctx context.Context, next time.Time, period time.Duration)

	// OnStart runs on the loop goroutine before the first period is
	// scheduled, after any previous run has exited.
	OnStart func(ctx context.Context)

	// Now is the time source. Defaults to time.Now.
	Now func() time.Time
}

// Fixed returns a Period function with a constant value.
func Fixed(d time.Duration) func() time.Duration {
	return func() time.Duration { return d }
}

// Loop runs a Task repeatedly until stopped.
type Loop struct {
	name string
	task Task
	opts Options

	mu   sync.Mutex
	stop context.CancelFunc // nil when not alive
	done chan struct{}      // closed when the latest run exits

	phase  atomic.Int32
	cycles atomic.Int64
}

// New creates a stopped Loop.
func New(name string, task Task, opts Options) *Loop {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Period == nil {
		opts.Period = Fixed(opts.Tick)
	}
	return &Loop{name: name, task: task, opts: opts}
}

func (l *Loop) Name() string { return l.name }

// Start launches the loop goroutine. Tasks receive ctx, so cancelling ctx
// aborts in-flight work; Stop only prevents further invocations. Start
// returns false without doing anything when the loop is already alive.
func (l *Loop) Start(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop != nil {
		return false
	}
	stopCtx, cancel := context.WithCancel(ctx)
	prev, done := l.done, make(chan struct{})
	l.stop = cancel
	l.done = done
	l.phase.Store(int32(Waiting))
	go l.run(ctx, stopCtx, prev, done)
	log.Debugf("%s loop started", l.name)
	return true
}

// Stop raises the stop signal. It does not wait for the goroutine to exit;
// use Wait for that. Stopping a loop that is not alive is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stop == nil {
		return
	}
	l.stop()
	l.stop = nil
	log.Debugf("%s loop stop requested", l.name)
}

// Wait blocks until the most recent run, and every run before it, has exited.
func (l *Loop) Wait() {
	l.mu.Lock()
	done := l.done
	l.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Alive reports whether the loop is running and has not been asked to stop.
func (l *Loop) Alive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stop != nil
}

// Phase returns the loop's current phase.
func (l *Loop) Phase() Phase {
	return Phase(l.phase.Load())
}

// Cycles returns the number of completed task invocations across all runs.
func (l *Loop) Cycles() int64 {
	return l.cycles.Load()
}

func (l *Loop) run(taskCtx, stopCtx context.Context, prev, done chan struct{}) {
	defer func() {
		l.mu.Lock()
		// A parent cancellation ends the run without Stop; clear our own
		// handle unless a newer run has already replaced it.
		if l.done == done {
			if l.stop != nil {
				l.stop()
				l.stop = nil
			}
			l.phase.Store(int32(Idle))
		}
		l.mu.Unlock()
		close(done)
		log.Debugf("%s loop exited", l.name)
	}()

	if prev != nil {
		<-prev
	}
	if stopCtx.Err() != nil {
		return
	}
	if l.opts.OnStart != nil {
		l.opts.OnStart(taskCtx)
	}

	ticker := time.NewTicker(l.opts.Tick)
	defer ticker.Stop()

	period := l.opts.Period()
	next := l.opts.Now()
	if !l.opts.Immediate {
		next = next.Add(period)
		l.schedule(stopCtx, next, period)
	}

	for {
		if stopCtx.Err() != nil {
			return
		}

		if l.opts.Reschedule != nil {
			if moved, p, ok := l.opts.Reschedule(next); ok {
				next = moved
				l.schedule(stopCtx, next, p)
			}
		}

		if !l.opts.Now().Before(next) {
			l.phase.Store(int32(Running))
			l.invoke(taskCtx)
			l.cycles.Add(1)
			period = l.opts.Period()
			next = l.opts.Now().Add(period)
			l.phase.Store(int32(Waiting))
			if stopCtx.Err() != nil {
				return
			}
			l.schedule(stopCtx, next, period)
		}

		select {
		case <-stopCtx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (l *Loop) schedule(ctx context.Context, next time.Time, period time.Duration) {
	if l.opts.OnSchedule != nil {
		l.opts.OnSchedule(ctx, next, period)
	}
}

// invoke runs the task, converting a panic into a logged failure so a single
// bad cycle cannot kill the loop.
func (l *Loop) invoke(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s loop: recovered panic: %v", l.name, fmt.Sprint(r))
		}
	}()
	l.task(ctx)
}
