package localapi

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/worktrack/agent/internal/tracker"
)

const (
	clientBuffer = 16
	writeWait    = 5 * time.Second
)

// StatusSource supplies the snapshot sent to newly connected clients.
type StatusSource interface {
	Status() tracker.StatusUpdate
}

type client struct {
	conn *websocket.Conn
	b    *Broadcaster
	send chan []byte
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.b.RemoveClient(c)
			return
		}
	}
}

// Broadcaster fans status updates out to websocket clients. Updates are
// coalesced to at most one per throttle interval; a client that cannot keep
// up is disconnected.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	source   StatusSource
	throttle time.Duration
}

func NewBroadcaster(source StatusSource, throttle time.Duration) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*client]bool),
		source:   source,
		throttle: throttle,
	}
}

// AddClient registers conn and queues the current snapshot for it.
func (b *Broadcaster) AddClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, b: b, send: make(chan []byte, clientBuffer)}

	b.mu.Lock()
	b.clients[c] = true
	b.mu.Unlock()

	data, err := json.Marshal(WSMessage{Type: MsgSnapshot, Payload: NewStatusPayload(b.source.Status())})
	if err == nil {
		c.send <- data
	}
	go c.writePump()
	return c
}

func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// Run forwards updates until ctx is cancelled or updates is closed, then
// disconnects every client.
func (b *Broadcaster) Run(ctx context.Context, updates <-chan tracker.StatusUpdate) {
	defer b.closeAll()

	var (
		pending *tracker.StatusUpdate
		flush   <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			if b.throttle <= 0 {
				b.broadcast(u)
				continue
			}
			pending = &u
			if flush == nil {
				flush = time.After(b.throttle)
			}
		case <-flush:
			flush = nil
			if pending != nil {
				b.broadcast(*pending)
				pending = nil
			}
		}
	}
}

func (b *Broadcaster) broadcast(u tracker.StatusUpdate) {
	data, err := json.Marshal(WSMessage{Type: MsgStatus, Payload: NewStatusPayload(u)})
	if err != nil {
		log.Errorf("broadcast marshal: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if !b.offer(c, data) {
			log.Info("status client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

// offer queues data for c. It reports false only when c is still registered
// but its buffer is full; send is never used after RemoveClient closes it.
func (b *Broadcaster) offer(c *client, data []byte) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.clients[c] {
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.clients {
		delete(b.clients, c)
		close(c.send)
	}
}
