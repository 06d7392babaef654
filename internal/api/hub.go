package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Envelope wraps every message pushed to WebSocket clients.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Hub fans tick summaries and grid-change events out to connected
// WebSocket clients. Slow clients are dropped rather than allowed to
// stall the broadcast.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan []byte
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// NewHub creates a hub. Call Run in a goroutine before serving.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []byte, 256),
	}
}

// Run processes registration and broadcast until the process exits.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
		case c := <-h.unregister:
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Broadcast sends a typed payload to every connected client.
func (h *Hub) Broadcast(eventType string, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		slog.Error("broadcast marshal", "type", eventType, "error", err)
		return
	}
	msg, err := json.Marshal(Envelope{Type: eventType, Payload: raw})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		// Broadcast buffer full — drop the message rather than block a tick.
	}
}

// HandleWS upgrades an HTTP request to a WebSocket subscription.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn, send: make(chan []byte, 128)}
	h.register <- c
	go c.writer()
	go c.reader(h)
}

func (c *client) writer() {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// reader drains incoming frames; the feed is broadcast-only, so anything
// the client sends is ignored, but reading is required to notice closes.
func (c *client) reader(h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
