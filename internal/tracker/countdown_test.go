package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countdownRecorder struct {
	mu   sync.Mutex
	seen []Countdown
}

func (r *countdownRecorder) emit(c Countdown) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, c)
}

func (r *countdownRecorder) all() []Countdown {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Countdown(nil), r.seen...)
}

func (r *countdownRecorder) last() (Countdown, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seen) == 0 {
		return Countdown{}, false
	}
	return r.seen[len(r.seen)-1], true
}

func TestCountdownFraction(t *testing.T) {
	assert.Equal(t, 0.0, Countdown{}.Fraction())
	assert.Equal(t, 0.5, Countdown{Interval: 10 * time.Second, Elapsed: 5 * time.Second}.Fraction())
	assert.Equal(t, 1.0, Countdown{Interval: time.Second, Elapsed: 2 * time.Second}.Fraction())
}

func TestPresenterCountsDownToZero(t *testing.T) {
	rec := &countdownRecorder{}
	p := NewPresenter(5*time.Millisecond, nil, rec.emit)

	p.Begin(context.Background(), time.Now().Add(40*time.Millisecond), 40*time.Millisecond)

	waitFor(t, time.Second, func() bool {
		c, ok := rec.last()
		return ok && c.Remaining == 0
	}, "countdown reaches zero")

	seen := rec.all()
	require.GreaterOrEqual(t, len(seen), 2)
	for i := 1; i < len(seen); i++ {
		assert.LessOrEqual(t, seen[i].Remaining, seen[i-1].Remaining, "remaining must not increase")
		assert.Equal(t, seen[i].Interval, seen[i].Remaining+seen[i].Elapsed)
	}
}

func TestPresenterBeginReplacesPrevious(t *testing.T) {
	rec := &countdownRecorder{}
	p := NewPresenter(5*time.Millisecond, nil, rec.emit)
	ctx := context.Background()

	p.Begin(ctx, time.Now().Add(time.Hour), time.Hour)
	p.Begin(ctx, time.Now().Add(30*time.Millisecond), 30*time.Millisecond)

	waitFor(t, time.Second, func() bool {
		c, ok := rec.last()
		return ok && c.Interval == 30*time.Millisecond && c.Remaining == 0
	}, "second countdown completes")

	time.Sleep(20 * time.Millisecond)
	c, _ := rec.last()
	assert.Equal(t, 30*time.Millisecond, c.Interval, "replaced countdown must stay silent")
}

func TestPresenterResetShowsFullInterval(t *testing.T) {
	rec := &countdownRecorder{}
	p := NewPresenter(2*time.Millisecond, nil, rec.emit)

	p.Begin(context.Background(), time.Now().Add(time.Hour), time.Hour)
	waitFor(t, time.Second, func() bool { return len(rec.all()) > 0 }, "first emission")

	p.Reset(3 * time.Minute)
	time.Sleep(20 * time.Millisecond)

	c, ok := rec.last()
	require.True(t, ok)
	assert.Equal(t, Countdown{Interval: 3 * time.Minute, Remaining: 3 * time.Minute}, c)
}

func TestPresenterIgnoresBeginAfterStop(t *testing.T) {
	rec := &countdownRecorder{}
	p := NewPresenter(2*time.Millisecond, nil, rec.emit)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Begin(ctx, time.Now().Add(time.Second), time.Second)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.all())
}

func TestPresenterUsesClock(t *testing.T) {
	rec := &countdownRecorder{}
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	p := NewPresenter(time.Hour, func() time.Time { return base.Add(45 * time.Second) }, rec.emit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Begin(ctx, base.Add(3*time.Minute), 3*time.Minute)

	waitFor(t, time.Second, func() bool { return len(rec.all()) == 1 }, "initial emission")
	c, _ := rec.last()
	assert.Equal(t, 135*time.Second, c.Remaining)
	assert.Equal(t, 45*time.Second, c.Elapsed)
}
