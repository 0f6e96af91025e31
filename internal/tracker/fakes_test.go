package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/worktrack/agent/internal/push"
)

const testTick = 5 * time.Millisecond

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeCapturer struct {
	mu       sync.Mutex
	err      error
	full     int
	previews int
	stamps   []time.Time
	clock    func() time.Time
}

func (f *fakeCapturer) Capture(context.Context) ([]byte, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clock != nil {
		f.stamps = append(f.stamps, f.clock())
	}
	if f.err != nil {
		return nil, nil, f.err
	}
	f.full++
	return []byte("full-jpeg"), []byte("preview-jpeg"), nil
}

func (f *fakeCapturer) CapturePreview(context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.previews++
	return []byte("preview-jpeg"), nil
}

func (f *fakeCapturer) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeCapturer) captures() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.stamps...)
}

func (f *fakeCapturer) fullCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.full
}

type fakeAuthority struct {
	mu         sync.Mutex
	uploads    int
	uploadErr  error
	failNext   int // fail this many uploads, then succeed
	starts     int
	stops      int
	heartbeats []int64
	reportErr  error
}

var errUnreachable = errors.New("backend unreachable")

func (f *fakeAuthority) UploadScreenshot(_ context.Context, jpeg []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.failNext > 0 {
		f.failNext--
		return errUnreachable
	}
	return f.uploadErr
}

func (f *fakeAuthority) StartWork(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	return nil
}

func (f *fakeAuthority) StopWork(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeAuthority) Heartbeat(_ context.Context, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, delta)
	return f.reportErr
}

func (f *fakeAuthority) counts() (uploads, starts, stops int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploads, f.starts, f.stops
}

func (f *fakeAuthority) reported() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.heartbeats...)
}

type fakeLive struct {
	mu           sync.Mutex
	frames       []push.Frame
	terminates   []string
	err          error
	terminateErr error
}

func (f *fakeLive) SendFrame(frame push.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, frame)
	return nil
}

func (f *fakeLive) SendLiveTerminate(employeeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminateErr != nil {
		return f.terminateErr
	}
	f.terminates = append(f.terminates, employeeID)
	return nil
}

func (f *fakeLive) setTerminateErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminateErr = err
}

func (f *fakeLive) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeLive) terminateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.terminates)
}

// fakeIdle returns queued samples, repeating the last one.
type fakeIdle struct {
	mu      sync.Mutex
	samples []int64
	err     error
}

func (f *fakeIdle) IdleSeconds(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if len(f.samples) == 0 {
		return 0, nil
	}
	v := f.samples[0]
	if len(f.samples) > 1 {
		f.samples = f.samples[1:]
	}
	return v, nil
}

// blockingCapturer holds every capture until released and records how many
// ran at once.
type blockingCapturer struct {
	release chan struct{}

	mu          sync.Mutex
	calls       int
	inFlight    int
	maxInFlight int
}

func newBlockingCapturer() *blockingCapturer {
	return &blockingCapturer{release: make(chan struct{})}
}

func (b *blockingCapturer) Capture(ctx context.Context) ([]byte, []byte, error) {
	b.mu.Lock()
	b.calls++
	b.inFlight++
	if b.inFlight > b.maxInFlight {
		b.maxInFlight = b.inFlight
	}
	b.mu.Unlock()

	select {
	case <-b.release:
	case <-ctx.Done():
	}

	b.mu.Lock()
	b.inFlight--
	b.mu.Unlock()
	return []byte("full-jpeg"), []byte("preview-jpeg"), nil
}

func (b *blockingCapturer) CapturePreview(context.Context) ([]byte, error) {
	return []byte("preview-jpeg"), nil
}

func (b *blockingCapturer) stats() (calls, inFlight, maxInFlight int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls, b.inFlight, b.maxInFlight
}

// blockingIdle holds every sample until released.
type blockingIdle struct {
	release chan struct{}
}

func (b *blockingIdle) IdleSeconds(ctx context.Context) (int64, error) {
	select {
	case <-b.release:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
