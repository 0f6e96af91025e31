package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("push")

const (
	defaultReconnectBase = 1 * time.Second
	defaultReconnectMax  = 30 * time.Second
	defaultWriteTimeout  = 10 * time.Second
	defaultPongTimeout   = 60 * time.Second
	handshakeTimeout     = 10 * time.Second
)

// ErrNotConnected is returned by Emit while no connection is up.
var ErrNotConnected = errors.New("push channel not connected")

// Options configures a Client.
type Options struct {
	// URL is the Socket.IO endpoint, e.g. ws://host:4000/socket.io/.
	URL     string
	UserID  string
	Role    string
	AgentID string

	// Token returns the current bearer token; it is consulted on every dial.
	Token func() string

	// OnMessage receives every decoded inbound event, on the read goroutine.
	OnMessage func(Message)

	// OnState observes connects and disconnects.
	OnState func(connected bool, err error)

	ReconnectBase time.Duration
	ReconnectMax  time.Duration
	// PongTimeout bounds server silence when the handshake does not
	// announce its own ping settings.
	PongTimeout  time.Duration
	WriteTimeout time.Duration

	Dialer *websocket.Dialer
}

// Client is a reconnecting Socket.IO client over a single websocket. Run
// owns the connection; Emit may be called from any goroutine.
type Client struct {
	opts Options

	mu      sync.Mutex
	writeMu sync.Mutex // serialises all conn writes (pong, emit)
	conn    *websocket.Conn
}

// New creates a client; call Run to connect.
func New(opts Options) *Client {
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = defaultReconnectBase
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = defaultReconnectMax
	}
	if opts.PongTimeout <= 0 {
		opts.PongTimeout = defaultPongTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.Role == "" {
		opts.Role = "employee"
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{opts: opts}
}

// EndpointURL converts an http(s) backend URL into the websocket endpoint
// at path.
func EndpointURL(backendURL, path string) (string, error) {
	u, err := url.Parse(backendURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported backend scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String(), nil
}

// Run dials, reads and reconnects with exponential backoff until ctx is
// cancelled.
func (c *Client) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.ReconnectBase
	bo.MaxInterval = c.opts.ReconnectMax

	for {
		conn, open, err := c.dial(ctx)
		if err == nil {
			bo.Reset()
			err = c.serve(ctx, conn, open)
		}
		if ctx.Err() != nil {
			return nil
		}

		delay := bo.NextBackOff()
		log.Warningf("push channel down: %v (retry in %v)", err, delay.Round(time.Millisecond))
		c.notifyState(false, err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// dial opens the websocket and completes the Engine.IO and Socket.IO
// handshakes.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, openPacket, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return nil, openPacket{}, err
	}
	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	q.Set("userId", c.opts.UserID)
	q.Set("role", c.opts.Role)
	if c.opts.AgentID != "" {
		q.Set("agentId", c.opts.AgentID)
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.opts.Token != nil {
		if tok := c.opts.Token(); tok != "" {
			header.Set("Authorization", "Bearer "+tok)
		}
	}

	conn, resp, err := c.opts.Dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, openPacket{}, fmt.Errorf("dial %s: %w (status %d)", c.opts.URL, err, resp.StatusCode)
		}
		return nil, openPacket{}, fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	open, err := c.handshake(conn)
	if err != nil {
		conn.Close()
		return nil, openPacket{}, fmt.Errorf("handshake %s: %w", c.opts.URL, err)
	}
	return conn, open, nil
}

// handshake reads the Engine.IO open packet, joins the default namespace
// and waits for the server to accept.
func (c *Client) handshake(conn *websocket.Conn) (openPacket, error) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, frame, err := conn.ReadMessage()
	if err != nil {
		return openPacket{}, err
	}
	open, err := parseOpen(frame)
	if err != nil {
		return openPacket{}, err
	}

	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, connectPacket()); err != nil {
		return openPacket{}, err
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return openPacket{}, err
		}
		switch {
		case len(frame) == 1 && frame[0] == eioPing:
			if err := c.write(conn, pongPacket()); err != nil {
				return openPacket{}, err
			}
		case len(frame) >= 2 && frame[0] == eioMessage && frame[1] == sioConnect:
			return open, nil
		case len(frame) >= 2 && frame[0] == eioMessage && frame[1] == sioConnectError:
			return openPacket{}, fmt.Errorf("connect refused: %s", truncate(frame[2:]))
		default:
			return openPacket{}, fmt.Errorf("%w: %q", errUnexpectedPacket, truncate(frame))
		}
	}
}

// serve installs conn, reads until it fails, then clears it.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, open openPacket) error {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	log.Infof("push channel connected to %s (sid %s)", c.opts.URL, open.SID)
	c.notifyState(true, nil)

	// Unblock the read when ctx ends.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	err := c.readLoop(conn, open.liveness(c.opts.PongTimeout))

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	conn.Close()
	return err
}

// readLoop answers server pings and dispatches events. The server pings on
// its own schedule; a silence longer than liveness ends the session.
func (c *Client) readLoop(conn *websocket.Conn, liveness time.Duration) error {
	for {
		conn.SetReadDeadline(time.Now().Add(liveness))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if len(frame) == 0 {
			continue
		}

		switch frame[0] {
		case eioPing:
			if err := c.write(conn, pongPacket()); err != nil {
				return err
			}
		case eioClose:
			return errServerClosed
		case eioMessage:
			if len(frame) < 2 {
				continue
			}
			switch frame[1] {
			case sioEvent:
				msg, err := decodeEvent(frame[2:])
				if err != nil {
					log.Debugf("ignoring malformed push event: %v", err)
					continue
				}
				if c.opts.OnMessage != nil {
					c.opts.OnMessage(msg)
				}
			case sioDisconnect:
				return errServerClosed
			}
		}
	}
}

func (c *Client) write(conn *websocket.Conn, frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, frame)
}

// Connected reports whether a connection is currently up.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Emit sends one Socket.IO event.
func (c *Client) Emit(msgType string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	frame, err := encodeEvent(msgType, payload)
	if err != nil {
		return err
	}
	return c.write(conn, frame)
}

// SendFrame emits a live-view frame.
func (c *Client) SendFrame(f Frame) error {
	return c.Emit(TypeLiveFrame, f)
}

// SendLiveTerminate tells viewers the live view has ended.
func (c *Client) SendLiveTerminate(employeeID string) error {
	return c.Emit(TypeLiveTerminate, LiveTerminate{EmployeeID: employeeID})
}

func (c *Client) notifyState(connected bool, err error) {
	if c.opts.OnState != nil {
		c.opts.OnState(connected, err)
	}
}
