package idle

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMillis(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"0\n", 0, false},
		{"1999\n", 1, false},
		{"  65000 ", 65, false},
		{"-5", 0, false},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseMillis(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "ParseMillis(%q)", tt.in)
			continue
		}
		require.NoError(t, err, "ParseMillis(%q)", tt.in)
		assert.Equal(t, tt.want, got, "ParseMillis(%q)", tt.in)
	}
}

func TestCommandSource(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("relies on echo")
	}
	got, err := NewCommandSource([]string{"echo", "42000"}).IdleSeconds(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)
}

func TestCommandSourceMissingTool(t *testing.T) {
	_, err := NewCommandSource([]string{"worktrack-no-such-idle-tool"}).IdleSeconds(context.Background())
	assert.Error(t, err)
}

func TestDefaultCommand(t *testing.T) {
	assert.Equal(t, []string{"xprintidle"}, NewCommandSource(nil).Argv)
}

func TestMockSourceCycles(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := base
	s := &MockSource{Period: 90 * time.Second, Now: func() time.Time { return now }}
	ctx := context.Background()

	v, _ := s.IdleSeconds(ctx)
	assert.Equal(t, int64(0), v)

	now = base.Add(60 * time.Second)
	v, _ = s.IdleSeconds(ctx)
	assert.Equal(t, int64(60), v)

	now = base.Add(100 * time.Second)
	v, _ = s.IdleSeconds(ctx)
	assert.Equal(t, int64(10), v, "counter resets after a period")
}
