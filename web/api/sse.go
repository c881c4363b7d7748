package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/forgedev/forge-orch/internal/events"
)

// SSEHub streams run events to server-sent-event subscribers. Like the
// WebSocket hub, slow clients lose events instead of stalling publishers.
type SSEHub struct {
	mu      sync.Mutex
	clients map[chan events.Event]struct{}
}

// NewSSEHub creates a hub ready to accept subscribers
func NewSSEHub() *SSEHub {
	return &SSEHub{clients: make(map[chan events.Event]struct{})}
}

func (h *SSEHub) subscribe() chan events.Event {
	ch := make(chan events.Event, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *SSEHub) unsubscribe(ch chan events.Event) {
	h.mu.Lock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Broadcast delivers an event to every subscriber, dropping for clients
// whose buffers are full
func (h *SSEHub) Broadcast(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- e:
		default:
		}
	}
}

// ClientCount returns the number of connected subscribers
func (h *SSEHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (s *Server) sseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		ch := s.sseHub.subscribe()
		defer s.sseHub.unsubscribe(ch)

		for {
			select {
			case <-r.Context().Done():
				return
			case e, open := <-ch:
				if !open {
					return
				}
				data, err := json.Marshal(e)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\n", e.Status)
				fmt.Fprintf(w, "data: %s\n\n", data)
				flusher.Flush()
			}
		}
	}
}
