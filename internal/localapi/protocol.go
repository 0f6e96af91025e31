package localapi

import (
	"github.com/worktrack/agent/internal/session"
	"github.com/worktrack/agent/internal/tracker"
)

type MessageType string

const (
	MsgSnapshot MessageType = "snapshot"
	MsgStatus   MessageType = "status"
)

type WSMessage struct {
	Type    MessageType `json:"type"`
	Payload any         `json:"payload"`
}

// StatusPayload is the wire form of a coordinator status update.
type StatusPayload struct {
	Tracking           bool                                       `json:"tracking"`
	LiveView           bool                                       `json:"liveView"`
	IntervalSeconds    int                                        `json:"intervalSeconds"`
	IntervalAssigned   bool                                       `json:"intervalAssigned"`
	NextCaptureSeconds float64                                    `json:"nextCaptureSeconds"`
	CycleFraction      float64                                    `json:"cycleFraction"`
	Capture            string                                     `json:"capture"`
	Live               string                                     `json:"live"`
	PushConnected      bool                                       `json:"pushConnected"`
	Notice             string                                     `json:"notice,omitempty"`
	LastUpload         session.Outcome                            `json:"lastUpload"`
	LastLiveFrame      session.Outcome                            `json:"lastLiveFrame"`
	LastHeartbeat      session.Outcome                            `json:"lastHeartbeat"`
	Health             map[tracker.Subsystem]tracker.HealthReport `json:"health"`
}

func NewStatusPayload(u tracker.StatusUpdate) StatusPayload {
	return StatusPayload{
		Tracking:           u.Session.Tracking,
		LiveView:           u.Session.LiveView,
		IntervalSeconds:    u.Session.IntervalSeconds,
		IntervalAssigned:   u.Session.IntervalAssigned,
		NextCaptureSeconds: u.Countdown.Remaining.Seconds(),
		CycleFraction:      u.Countdown.Fraction(),
		Capture:            u.Capture.String(),
		Live:               u.Live.String(),
		PushConnected:      u.PushConnected,
		Notice:             u.Notice,
		LastUpload:         u.Session.LastUpload,
		LastLiveFrame:      u.Session.LastLiveFrame,
		LastHeartbeat:      u.Session.LastHeartbeat,
		Health:             u.Health,
	}
}

// ControlResponse answers a control request.
type ControlResponse struct {
	Accepted bool   `json:"accepted"`
	Event    string `json:"event"`
	Error    string `json:"error,omitempty"`
}
