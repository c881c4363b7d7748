package events

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSHub broadcasts run events to WebSocket subscribers. Slow or dead
// connections are dropped rather than allowed to stall the run.
type WSHub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	conns   map[*websocket.Conn]chan Event
	closed  bool
	writeTO time.Duration
}

// NewWSHub creates a hub ready to accept connections
func NewWSHub() *WSHub {
	return &WSHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:   make(map[*websocket.Conn]chan Event),
		writeTO: 10 * time.Second,
	}
}

// HandleWebSocket upgrades an incoming request and streams events to it
func (h *WSHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}

	ch := make(chan Event, 64)
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	h.conns[conn] = ch
	h.mu.Unlock()

	go h.writeLoop(conn, ch)
	go h.readLoop(conn)
}

func (h *WSHub) writeLoop(conn *websocket.Conn, ch chan Event) {
	defer h.drop(conn)
	for e := range ch {
		conn.SetWriteDeadline(time.Now().Add(h.writeTO))
		if err := conn.WriteJSON(e); err != nil {
			return
		}
	}
}

// readLoop drains client messages so pings and close frames are processed
func (h *WSHub) readLoop(conn *websocket.Conn) {
	defer h.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *WSHub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.conns[conn]
	if ok {
		delete(h.conns, conn)
		close(ch)
	}
	h.mu.Unlock()
	conn.Close()
}

// Publish implements Sink; events go to every connected client, dropping
// for clients whose buffers are full
func (h *WSHub) Publish(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.conns {
		select {
		case ch <- e:
		default:
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *WSHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close disconnects all clients
func (h *WSHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn, ch := range h.conns {
		close(ch)
		conn.Close()
		delete(h.conns, conn)
	}
}
