// Package stream fans auction state changes out to websocket subscribers.
// The hub is best effort: a slow or dead subscriber is dropped, never waited
// on, so a stuck browser can never hold up a finalize.
package stream

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 5 * time.Second
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Subscribers are read-only consumers of public auction state.
	CheckOrigin: func(*http.Request) bool { return true },
}

type envelope struct {
	Event   string    `json:"event"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		log:     logger,
		clients: make(map[*client]struct{}),
	}
}

// Broadcast implements the auction service's broadcast sink. It never blocks:
// a subscriber whose buffer is full loses the message and the connection.
func (h *Hub) Broadcast(event string, payload any) {
	msg, err := json.Marshal(envelope{Event: event, At: time.Now().UTC(), Payload: payload})
	if err != nil {
		h.log.Error("stream marshal failed", "event", event, "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// ServeHTTP upgrades the request and subscribes it until the peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.log.Info("stream subscriber connected", "remote", r.RemoteAddr, "subscribers", n)

	go h.writeLoop(c)
	h.readLoop(c)
}

func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readLoop discards inbound frames; it exists to notice the peer closing.
func (h *Hub) readLoop(c *client) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}

// Close drops every subscriber. Used during shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
