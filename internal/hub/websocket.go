package hub

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"meshscope/internal/logging"
	"meshscope/internal/service"
)

// Request types accepted from WebSocket clients
const (
	RequestLastResults = "getLastResults"
	RequestDevscan     = "devscan"
	RequestPing        = "ping"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Request is a message sent by a WebSocket client
type Request struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`
}

// ServeWS upgrades the connection and serves request/reply traffic.
// Replies and broadcasts share one writer goroutine per connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Debug("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient("ws")
	select {
	case h.register <- client:
	case <-r.Context().Done():
		conn.Close()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	go h.writePump(conn, client, cancel)

	h.readPump(ctx, conn, client)
	cancel()
	h.drop(client)
}

func (h *Hub) readPump(ctx context.Context, conn *websocket.Conn, client *Client) {
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("WebSocket read failed", zap.String("client", client.id), zap.Error(err))
			}
			return
		}
		h.handleRequest(ctx, client, req)
	}
}

func (h *Hub) handleRequest(ctx context.Context, client *Client, req Request) {
	switch req.Type {
	case RequestLastResults:
		h.reply(ctx, client, Message{Type: "reply", ID: req.ID, Data: h.topology.LastResults()})

	case RequestDevscan:
		// Scans take seconds; keep reading while one runs. The scan is not
		// tied to this connection, its graph still reaches the other clients.
		scanCtx := context.WithoutCancel(ctx)
		go func() {
			graph, err := h.topology.Scan(scanCtx)
			switch {
			case errors.Is(err, service.ErrScanInProgress):
				h.reply(ctx, client, Message{Type: "reply", ID: req.ID})
			case err != nil:
				h.reply(ctx, client, Message{Type: "error", ID: req.ID, Error: err.Error()})
			default:
				h.reply(ctx, client, Message{Type: "reply", ID: req.ID, Data: graph})
			}
		}()

	case RequestPing:
		h.reply(ctx, client, Message{Type: "pong", ID: req.ID})

	default:
		h.reply(ctx, client, Message{Type: "error", ID: req.ID, Error: "unknown request type " + req.Type})
	}
}

// reply queues msg for client; it is dropped once the connection is gone
func (h *Hub) reply(ctx context.Context, client *Client, msg Message) {
	data, err := encode(msg)
	if err != nil {
		logging.Error("Failed to marshal reply", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[client]; !ok {
		return
	}
	select {
	case client.events <- data:
	case <-ctx.Done():
	}
}

func (h *Hub) writePump(conn *websocket.Conn, client *Client, cancel context.CancelFunc) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cancel()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
