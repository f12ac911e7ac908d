package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/metrics"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	sendBuffer = 64
)

// ErrClientClosed is returned by Send once the connection is gone.
var ErrClientClosed = errors.New("websocket client closed")

// ErrClientSlow is returned by Send when the client's buffer is full.
var ErrClientSlow = errors.New("websocket client buffer full")

// Client is one stream subscriber
type Client struct {
	ID     string
	UserID string
	conn   *websocket.Conn
	hub    *Hub
	send   chan []byte

	// done is closed exactly once when the client shuts down; send is never closed.
	done      chan struct{}
	closeOnce sync.Once
	cancel    context.CancelFunc
}

// IncomingMessage is a frame sent by the subscriber
type IncomingMessage struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// NewClient creates a client whose context is cancelled when it shuts down.
func NewClient(ctx context.Context, userID string, conn *websocket.Conn, hub *Hub) (*Client, context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		conn:   conn,
		hub:    hub,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}, ctx
}

// Send encodes and queues a message for this client without blocking.
func (c *Client) Send(msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	if !c.enqueue(payload) {
		return ErrClientSlow
	}
	metrics.WSMessagesSent.WithLabelValues(msg.Type).Inc()
	return nil
}

func (c *Client) enqueue(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}

// ReadPump reads frames until the connection fails, then unregisters the client.
func (c *Client) ReadPump() {
	defer func() {
		c.cancel()
		select {
		case c.hub.unregister <- c:
		case <-c.hub.quit:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Str("client_id", c.ID).Msg("WebSocket error")
			}
			return
		}

		var msg IncomingMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			logging.Debug().Err(err).Str("client_id", c.ID).Msg("Invalid message format")
			continue
		}

		switch msg.Type {
		case TypePing:
			err := c.Send(Message{
				Type:      TypePong,
				Timestamp: time.Now().UTC().Format(time.RFC3339),
			})
			if err != nil {
				return
			}
		}
	}
}

// WritePump writes queued frames and keepalive pings until the client closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
