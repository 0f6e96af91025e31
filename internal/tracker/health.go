package tracker

import (
	"sync"
	"time"
)

// Subsystem names a unit whose failures are tracked independently.
type Subsystem string

const (
	SubsystemCapture   Subsystem = "capture"
	SubsystemUpload    Subsystem = "upload"
	SubsystemLive      Subsystem = "live"
	SubsystemHeartbeat Subsystem = "heartbeat"
	SubsystemPush      Subsystem = "push"
	SubsystemSession   Subsystem = "session"
)

var allSubsystems = []Subsystem{
	SubsystemCapture,
	SubsystemUpload,
	SubsystemLive,
	SubsystemHeartbeat,
	SubsystemPush,
	SubsystemSession,
}

// Subsystems returns every tracked subsystem in display order.
func Subsystems() []Subsystem {
	return append([]Subsystem(nil), allSubsystems...)
}

// HealthStatus summarizes consecutive failures for a subsystem.
type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailed   HealthStatus = "failed"
)

// HealthReport is a point-in-time view of one subsystem.
type HealthReport struct {
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	LastError           string       `json:"lastError,omitempty"`
	LastFailure         time.Time    `json:"lastFailure,omitempty"`
	LastSuccess         time.Time    `json:"lastSuccess,omitempty"`
}

type subsystemHealth struct {
	failures    int
	lastErr     string
	lastFailure time.Time
	lastSuccess time.Time
}

// healthBoard tracks consecutive failures per subsystem. It is written from
// the loop goroutines and read by the coordinator when publishing status.
type healthBoard struct {
	mu        sync.Mutex
	threshold int
	entries   map[Subsystem]*subsystemHealth
	now       func() time.Time
}

func newHealthBoard(threshold int, now func() time.Time) *healthBoard {
	if threshold <= 0 {
		threshold = 3
	}
	entries := make(map[Subsystem]*subsystemHealth, len(allSubsystems))
	for _, s := range allSubsystems {
		entries[s] = &subsystemHealth{}
	}
	return &healthBoard{threshold: threshold, entries: entries, now: now}
}

func (b *healthBoard) recordSuccess(s Subsystem) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.entryLocked(s)
	h.failures = 0
	h.lastErr = ""
	h.lastSuccess = b.now()
}

func (b *healthBoard) recordFailure(s Subsystem, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.entryLocked(s)
	h.failures++
	h.lastErr = err.Error()
	h.lastFailure = b.now()
}

// entryLocked returns the entry for s, creating it if needed. Caller must hold b.mu.
func (b *healthBoard) entryLocked(s Subsystem) *subsystemHealth {
	h, ok := b.entries[s]
	if !ok {
		h = &subsystemHealth{}
		b.entries[s] = h
	}
	return h
}

// statusLocked computes the status for h. Caller must hold b.mu.
func (b *healthBoard) statusLocked(h *subsystemHealth) HealthStatus {
	switch {
	case h.failures >= b.threshold:
		return StatusFailed
	case h.failures > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

func (b *healthBoard) status(s Subsystem) HealthStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.statusLocked(b.entryLocked(s))
}

// snapshot returns a consistent copy of every subsystem's health.
func (b *healthBoard) snapshot() map[Subsystem]HealthReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[Subsystem]HealthReport, len(b.entries))
	for s, h := range b.entries {
		out[s] = HealthReport{
			Status:              b.statusLocked(h),
			ConsecutiveFailures: h.failures,
			LastError:           h.lastErr,
			LastFailure:         h.lastFailure,
			LastSuccess:         h.lastSuccess,
		}
	}
	return out
}
