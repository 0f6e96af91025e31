package session

import (
	"errors"
	"sync"
	"time"
)

// DefaultIntervalSeconds is the capture cadence used when neither local
// configuration nor a remote assignment supplies one.
const DefaultIntervalSeconds = 180

var (
	// ErrNotAuthorized is returned when tracking is requested before a remote
	// authority has assigned a capture interval.
	ErrNotAuthorized = errors.New("capture interval not assigned")

	// ErrInvalidInterval is returned for non-positive interval assignments.
	ErrInvalidInterval = errors.New("capture interval must be positive")
)

// Outcome records the result of the most recent attempt of some operation.
// A zero Outcome means no attempt has completed yet.
type Outcome struct {
	At  time.Time `json:"at"`
	Err string    `json:"error,omitempty"`
}

// OK reports whether the last attempt succeeded.
func (o Outcome) OK() bool {
	return !o.At.IsZero() && o.Err == ""
}

// IsZero reports whether no attempt has been recorded.
func (o Outcome) IsZero() bool {
	return o.At.IsZero()
}

// Snapshot is a consistent copy of State taken under its lock.
type Snapshot struct {
	IntervalSeconds  int     `json:"intervalSeconds"`
	IntervalAssigned bool    `json:"intervalAssigned"`
	Tracking         bool    `json:"tracking"`
	LiveView         bool    `json:"liveView"`
	LastUpload       Outcome `json:"lastUpload"`
	LastLiveFrame    Outcome `json:"lastLiveFrame"`
	LastHeartbeat    Outcome `json:"lastHeartbeat"`
}

// State is the single source of truth for the tracking session. All fields
// are private; loops and the coordinator go through the accessors so every
// read and write is synchronized.
//
// Invariants enforced here:
//   - interval > 0 at all times
//   - tracking becomes true only while assigned is true
//   - live may be true only while tracking is true
type State struct {
	mu sync.RWMutex

	interval   int
	assigned   bool
	epoch      uint64 // bumped on every assignment
	assignedAt time.Time

	tracking bool
	live     bool

	lastUpload    Outcome
	lastLiveFrame Outcome
	lastHeartbeat Outcome

	now func() time.Time
}

// NewState returns a stopped session with no interval assigned. A
// non-positive defaultInterval falls back to DefaultIntervalSeconds.
func NewState(defaultInterval int) *State {
	if defaultInterval <= 0 {
		defaultInterval = DefaultIntervalSeconds
	}
	return &State{
		interval: defaultInterval,
		now:      time.Now,
	}
}

// SetClock replaces the time source used to stamp outcomes and assignments.
func (s *State) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *State) Interval() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval
}

// IntervalEpoch returns the current interval together with the assignment
// epoch and the time of the latest assignment. The epoch lets a loop detect
// a reassignment it has not yet observed.
func (s *State) IntervalEpoch() (interval int, epoch uint64, assignedAt time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.interval, s.epoch, s.assignedAt
}

func (s *State) IntervalAssigned() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.assigned
}

// AssignInterval records a remote interval assignment.
func (s *State) AssignInterval(seconds int) error {
	if seconds <= 0 {
		return ErrInvalidInterval
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = seconds
	s.assigned = true
	s.epoch++
	s.assignedAt = s.now()
	return nil
}

func (s *State) Tracking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tracking
}

// BeginTracking moves the session to Running. It returns started=false with
// a nil error when the session is already running.
func (s *State) BeginTracking() (started bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.assigned {
		return false, ErrNotAuthorized
	}
	if s.tracking {
		return false, nil
	}
	s.tracking = true
	return true, nil
}

// EndTracking moves the session to Stopped and forces live view off.
// wasTracking is false when the session was already stopped.
func (s *State) EndTracking() (wasTracking, liveWasActive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasTracking = s.tracking
	liveWasActive = s.live
	s.tracking = false
	s.live = false
	return wasTracking, liveWasActive
}

func (s *State) LiveView() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.live
}

// SetLiveView applies a live-activation toggle. Activation is refused while
// the session is not tracking. changed reports whether the flag flipped.
func (s *State) SetLiveView(active bool) (changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active && !s.tracking {
		return false, ErrNotTracking
	}
	changed = s.live != active
	s.live = active
	return changed, nil
}

// ErrNotTracking is returned when live view is activated on a stopped session.
var ErrNotTracking = errors.New("session is not tracking")

// DisableLiveView clears the live flag and reports whether it was set.
func (s *State) DisableLiveView() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.live
	s.live = false
	return was
}

func (s *State) RecordUpload(err error) {
	s.record(&s.lastUpload, err)
}

func (s *State) RecordLiveFrame(err error) {
	s.record(&s.lastLiveFrame, err)
}

func (s *State) RecordHeartbeat(err error) {
	s.record(&s.lastHeartbeat, err)
}

func (s *State) record(dst *Outcome, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := Outcome{At: s.now()}
	if err != nil {
		o.Err = err.Error()
	}
	*dst = o
}

// Snapshot returns a copy of every field, safe to retain.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		IntervalSeconds:  s.interval,
		IntervalAssigned: s.assigned,
		Tracking:         s.tracking,
		LiveView:         s.live,
		LastUpload:       s.lastUpload,
		LastLiveFrame:    s.lastLiveFrame,
		LastHeartbeat:    s.lastHeartbeat,
	}
}
