// Package hub pushes topology updates to browsers over Server-Sent Events
// and WebSocket connections.
package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"meshscope/internal/domain"
	"meshscope/internal/logging"
	"meshscope/internal/service"
)

// EventDevscan is the event name used when a completed graph is pushed
const EventDevscan = "devscan"

// Topology is the part of the topology service the hub serves
type Topology interface {
	LastResults() *domain.Graph
	Scan(ctx context.Context) (*domain.Graph, error)
}

// Message is the envelope of everything sent to clients
type Message struct {
	Type  string      `json:"type"`
	ID    string      `json:"id,omitempty"`
	Event string      `json:"event,omitempty"`
	Data  interface{} `json:"data"`
	Error string      `json:"error,omitempty"`
	TS    string      `json:"ts"`
}

// Client represents a connected SSE or WebSocket client
type Client struct {
	id     string
	kind   string
	events chan []byte
}

// Hub manages client connections
type Hub struct {
	topology Topology

	mu         sync.RWMutex
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

// New creates a new Hub
func New(topology Topology) *Hub {
	return &Hub{
		topology:   topology,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
	}
}

func newClient(kind string) *Client {
	return &Client{
		id:     uuid.NewString(),
		kind:   kind,
		events: make(chan []byte, 64),
	}
}

// Run starts the hub's event loop and returns when ctx ends
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("Client connected",
				zap.String("client", client.id),
				zap.String("kind", client.kind),
				zap.Int("total", total),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.events)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logging.Debug("Client disconnected",
				zap.String("client", client.id),
				zap.String("kind", client.kind),
				zap.Int("total", total),
			)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.events <- msg:
				default:
					// Client is slow, skip this message
					logging.Debug("Client is slow, skipping message", zap.String("client", client.id))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.events)
			}
			h.mu.Unlock()
			return nil
		}
	}
}

// Broadcast sends an event to all connected clients
func (h *Hub) Broadcast(event string, data interface{}) {
	msg, err := encode(Message{Type: "event", Event: event, Data: data})
	if err != nil {
		logging.Error("Failed to marshal event", zap.String("event", event), zap.Error(err))
		return
	}

	select {
	case h.broadcast <- msg:
	default:
		logging.Warn("Broadcast channel full, dropping event", zap.String("event", event))
	}
}

// Forward broadcasts bus events until ctx ends. Graph updates go out as
// devscan events; diagnostics keep their own name.
func (h *Hub) Forward(ctx context.Context, events <-chan service.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-events:
			if e.Type == service.EventGraphUpdated {
				h.Broadcast(EventDevscan, e.Payload)
				continue
			}
			h.Broadcast(string(e.Type), e.Payload)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func encode(msg Message) ([]byte, error) {
	if msg.TS == "" {
		msg.TS = time.Now().Format(time.RFC3339)
	}
	return json.Marshal(msg)
}

// ServeHTTP handles SSE connections
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Check if client supports SSE
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	client := newClient("sse")
	select {
	case h.register <- client:
	case <-r.Context().Done():
		return
	}

	defer h.drop(client)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.events:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprintf(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// drop unregisters a client unless the hub has already stopped
func (h *Hub) drop(client *Client) {
	select {
	case h.unregister <- client:
	case <-time.After(time.Second):
	}
}
