// Package push maintains the agent's Socket.IO channel to the backend:
// inbound interval assignments and live-view signals, outbound live frames.
package push

import "encoding/json"

// Event names.
const (
	TypeIntervalAssigned = "interval:assigned"
	TypeLiveInitiate     = "live_view:initiate"
	TypeLiveTerminate    = "live_view:terminate"
	TypeLiveFrame        = "live_view:frame"
)

// Message is one Socket.IO event: its name and first argument.
type Message struct {
	Type    string
	Payload json.RawMessage
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(m.Payload, v)
}

// IntervalAssigned carries a manager's capture interval assignment.
type IntervalAssigned struct {
	EmployeeID      string `json:"employeeId"`
	IntervalSeconds int    `json:"intervalSeconds"`
}

// LiveSignal accompanies live_view:initiate and live_view:terminate from
// the backend.
type LiveSignal struct {
	By     string `json:"by,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Frame is one live-view preview.
type Frame struct {
	EmployeeID  string `json:"employeeId"`
	FrameBase64 string `json:"frameBase64"`
	TS          string `json:"ts"`
}

// LiveTerminate tells viewers the employee ended the live view.
type LiveTerminate struct {
	EmployeeID string `json:"employeeId"`
}
