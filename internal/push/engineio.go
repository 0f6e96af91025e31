package push

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DefaultPath is where the backend mounts its Socket.IO endpoint.
const DefaultPath = "/socket.io/"

// Engine.IO v4 packet types, the first byte of every text frame.
const (
	eioOpen    = '0'
	eioClose   = '1'
	eioPing    = '2'
	eioPong    = '3'
	eioMessage = '4'
)

// Socket.IO v5 packet types, the byte after an Engine.IO message type.
const (
	sioConnect      = '0'
	sioDisconnect   = '1'
	sioEvent        = '2'
	sioConnectError = '4'
)

var (
	errUnexpectedPacket = errors.New("unexpected packet")
	errServerClosed     = errors.New("server closed the session")
)

// openPacket is the Engine.IO handshake sent by the server on connect.
type openPacket struct {
	SID          string `json:"sid"`
	PingInterval int    `json:"pingInterval"`
	PingTimeout  int    `json:"pingTimeout"`
}

// liveness is how long the server may stay silent before the session is
// considered dead: one ping interval plus the ping timeout.
func (o openPacket) liveness(fallback time.Duration) time.Duration {
	if o.PingInterval <= 0 || o.PingTimeout <= 0 {
		return fallback
	}
	return time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
}

func parseOpen(frame []byte) (openPacket, error) {
	var open openPacket
	if len(frame) == 0 || frame[0] != eioOpen {
		return open, fmt.Errorf("%w: want open, got %q", errUnexpectedPacket, truncate(frame))
	}
	if err := json.Unmarshal(frame[1:], &open); err != nil {
		return open, fmt.Errorf("open packet: %w", err)
	}
	return open, nil
}

// connectPacket joins the default namespace.
func connectPacket() []byte {
	return []byte{eioMessage, sioConnect}
}

func pongPacket() []byte {
	return []byte{eioPong}
}

// encodeEvent frames name and payload as a Socket.IO event:
// 42["name",payload].
func encodeEvent(name string, payload any) ([]byte, error) {
	args := []any{name}
	if payload != nil {
		args = append(args, payload)
	}
	body, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	return append([]byte{eioMessage, sioEvent}, body...), nil
}

// decodeEvent parses the Socket.IO body that follows "42". Events for other
// namespaces are rejected; an ack id is skipped.
func decodeEvent(body []byte) (Message, error) {
	if len(body) > 0 && body[0] == '/' {
		return Message{}, fmt.Errorf("%w: namespaced event", errUnexpectedPacket)
	}
	body = bytes.TrimLeft(body, "0123456789")

	var args []json.RawMessage
	if err := json.Unmarshal(body, &args); err != nil {
		return Message{}, err
	}
	if len(args) == 0 {
		return Message{}, fmt.Errorf("%w: event without a name", errUnexpectedPacket)
	}
	var msg Message
	if err := json.Unmarshal(args[0], &msg.Type); err != nil {
		return Message{}, fmt.Errorf("event name: %w", err)
	}
	if len(args) > 1 {
		msg.Payload = args[1]
	}
	return msg, nil
}

func truncate(b []byte) string {
	const max = 64
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
