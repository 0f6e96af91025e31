package tracker

import (
	"context"

	"github.com/worktrack/agent/internal/push"
)

// Capturer grabs the screen. Capture returns the full-size upload image and
// a reduced preview from the same grab; CapturePreview returns only the
// preview.
type Capturer interface {
	Capture(ctx context.Context) (full, preview []byte, err error)
	CapturePreview(ctx context.Context) ([]byte, error)
}

// Authority is the remote work-tracking service.
type Authority interface {
	UploadScreenshot(ctx context.Context, jpeg []byte) error
	StartWork(ctx context.Context) error
	StopWork(ctx context.Context) error
	Heartbeat(ctx context.Context, idleDeltaSeconds int64) error
}

// LiveChannel is the push channel used for live-view frames and
// terminations.
type LiveChannel interface {
	SendFrame(frame push.Frame) error
	SendLiveTerminate(employeeID string) error
}

// IdleSource reports the seconds elapsed since the last user input.
type IdleSource interface {
	IdleSeconds(ctx context.Context) (int64, error)
}

// Deps bundles the coordinator's collaborators. Live may be nil when no push
// channel is configured; frames and terminations then fail with
// ErrConnectionFailure.
type Deps struct {
	Capturer  Capturer
	Authority Authority
	Live      LiveChannel
	Idle      IdleSource
}
