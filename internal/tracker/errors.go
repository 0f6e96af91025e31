package tracker

import (
	"errors"

	"github.com/worktrack/agent/internal/session"
)

// Failure taxonomy. Collaborator errors are wrapped with one of these so
// callers can classify them with errors.Is.
var (
	// ErrNotAuthorized: start attempted before an interval was assigned.
	ErrNotAuthorized = session.ErrNotAuthorized

	// ErrInvalidInterval: a non-positive interval assignment.
	ErrInvalidInterval = session.ErrInvalidInterval

	// ErrNotTracking: live view activation while the session is stopped.
	ErrNotTracking = session.ErrNotTracking

	// ErrCaptureFailure: screen capture or encoding failed; the cycle is skipped.
	ErrCaptureFailure = errors.New("capture failed")

	// ErrTransportFailure: an upload, report or emit failed.
	ErrTransportFailure = errors.New("transport failed")

	// ErrConnectionFailure: the push channel is unavailable.
	ErrConnectionFailure = errors.New("push channel unavailable")
)
