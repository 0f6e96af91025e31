// Package idle reports how long the user has been away from keyboard and
// mouse.
package idle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CommandSource runs a tool that prints idle time in milliseconds, such
// as xprintidle.
type CommandSource struct {
	Argv []string
}

func NewCommandSource(argv []string) *CommandSource {
	if len(argv) == 0 {
		argv = []string{"xprintidle"}
	}
	return &CommandSource{Argv: argv}
}

// IdleSeconds returns whole seconds since the last input event.
func (s *CommandSource) IdleSeconds(ctx context.Context) (int64, error) {
	if len(s.Argv) == 0 {
		return 0, errors.New("idle: empty command")
	}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Argv[0], s.Argv[1:]...)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("idle: %s: %w", s.Argv[0], err)
	}
	return ParseMillis(stdout.String())
}

// ParseMillis converts tool output in milliseconds to whole seconds.
// Negative readings are clamped to zero.
func ParseMillis(out string) (int64, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("idle: parse %q: %w", strings.TrimSpace(out), err)
	}
	if ms < 0 {
		return 0, nil
	}
	return ms / 1000, nil
}

// MockSource simulates a user who alternates between activity and idle
// stretches: the counter grows for Period, then resets.
type MockSource struct {
	Period time.Duration
	Now    func() time.Time

	once  sync.Once
	start time.Time
}

func NewMockSource(period time.Duration) *MockSource {
	return &MockSource{Period: period, Now: time.Now}
}

func (s *MockSource) IdleSeconds(context.Context) (int64, error) {
	s.once.Do(func() { s.start = s.Now() })
	if s.Period <= 0 {
		return 0, nil
	}
	elapsed := s.Now().Sub(s.start) % s.Period
	return int64(elapsed / time.Second), nil
}
