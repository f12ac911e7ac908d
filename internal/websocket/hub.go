package websocket

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/metrics"
)

// Stream message types.
const (
	TypeContainers   = "containers"
	TypeNotification = "notification"
	TypePing         = "ping"
	TypePong         = "pong"
)

// Message is the envelope of every frame on the container stream.
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// Hub maintains active stream subscribers and broadcasts to all of them
type Hub struct {
	clients map[*Client]struct{}

	// Pre-encoded frames for every client
	broadcast chan outbound

	register   chan *Client
	unregister chan *Client

	// quit is closed when Run returns
	quit chan struct{}

	mu sync.RWMutex
}

type outbound struct {
	msgType string
	data    []byte
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
	}
}

// Run owns the client registry until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.quit)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
				metrics.WSConnectedClients.Dec()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WSConnectedClients.Inc()

			logging.Info().
				Str("client_id", client.ID).
				Str("user_id", client.UserID).
				Int("clients", total).
				Msg("✅ [WEBSOCKET] Client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				metrics.WSConnectedClients.Dec()
				logging.Info().
					Str("client_id", client.ID).
					Int("clients", len(h.clients)).
					Msg("🔴 [WEBSOCKET] Client disconnected")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.enqueue(msg.data) {
					metrics.WSMessagesSent.WithLabelValues(msg.msgType).Inc()
					continue
				}
				// Client buffer full, disconnect
				delete(h.clients, client)
				client.close()
				metrics.WSConnectedClients.Dec()
				logging.Warn().Str("client_id", client.ID).Msg("⚠️ Client buffer full, disconnecting")
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a message for every connected client. It never blocks;
// when the hub is backed up the message is dropped.
func (h *Hub) Broadcast(msgType string, data interface{}) {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		logging.Error().Err(err).Str("type", msgType).Msg("❌ Failed to marshal broadcast message")
		return
	}

	select {
	case h.broadcast <- outbound{msgType: msgType, data: payload}:
	default:
		logging.Warn().Str("type", msgType).Msg("⚠️ Broadcast queue full, dropping message")
	}
}

// Register adds a client. It returns false when the hub is no longer running.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.quit:
		return false
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
