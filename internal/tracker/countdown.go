package tracker

import (
	"context"
	"sync"
	"time"
)

// Countdown is the presenter's view of the current capture cycle.
type Countdown struct {
	Interval  time.Duration
	Remaining time.Duration
	Elapsed   time.Duration
}

// Fraction returns elapsed/interval clamped to [0, 1].
func (c Countdown) Fraction() float64 {
	if c.Interval <= 0 {
		return 0
	}
	f := float64(c.Elapsed) / float64(c.Interval)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

// Presenter turns the capture loop's schedule into a per-step countdown.
// Each Begin replaces the previous countdown; Reset returns it to a full,
// idle interval. Emissions from a replaced countdown are discarded.
type Presenter struct {
	step time.Duration
	now  func() time.Time
	emit func(Countdown)

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// NewPresenter creates a presenter that emits every step (one second when
// step is zero).
func NewPresenter(step time.Duration, now func() time.Time, emit func(Countdown)) *Presenter {
	if step <= 0 {
		step = time.Second
	}
	if now == nil {
		now = time.Now
	}
	return &Presenter{step: step, now: now, emit: emit}
}

// Begin starts a countdown to next covering period. ctx is the owning
// loop's stop signal: a Begin racing a stop is ignored, and cancelling ctx
// ends the countdown.
func (p *Presenter) Begin(ctx context.Context, next time.Time, period time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ctx.Err() != nil {
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	cctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	go p.run(cctx, p.gen, next, period)
}

// Reset stops any running countdown and shows a full interval.
func (p *Presenter) Reset(interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.emit(Countdown{Interval: interval, Remaining: interval})
}

func (p *Presenter) run(ctx context.Context, gen uint64, next time.Time, period time.Duration) {
	ticker := time.NewTicker(p.step)
	defer ticker.Stop()

	for {
		remaining := next.Sub(p.now())
		if remaining < 0 {
			remaining = 0
		}
		if remaining > period {
			remaining = period
		}
		if !p.publish(gen, Countdown{Interval: period, Remaining: remaining, Elapsed: period - remaining}) {
			return
		}
		if remaining == 0 {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Presenter) publish(gen uint64, c Countdown) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.gen {
		return false
	}
	p.emit(c)
	return true
}
