package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/middleware"
	"ecopunto-backend/internal/models"
	"ecopunto-backend/internal/simulation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origins are enforced by the CORS layer for the REST API only
		return true
	},
}

// HandleWebSocket upgrades the connection and runs the simulation for this
// subscriber: an immediate snapshot, then one snapshot per interval.
// The loop stops when the client goes away.
func HandleWebSocket(hub *Hub, sim *simulation.Simulator, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, _ := middleware.UserIDFromContext(r.Context())

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logging.Warn().Err(err).Msg("❌ WebSocket upgrade failed")
			return
		}

		// The request context ends with the handler; the subscriber outlives it.
		client, ctx := NewClient(context.WithoutCancel(r.Context()), userID, conn, hub)
		if !hub.Register(client) {
			client.close()
			conn.Close()
			return
		}

		go client.WritePump()
		go client.ReadPump()
		go runSubscriber(ctx, client, sim, interval)
	}
}

func runSubscriber(ctx context.Context, client *Client, sim *simulation.Simulator, interval time.Duration) {
	err := sim.Run(ctx, interval, func(containers []models.Container) error {
		return client.Send(Message{Type: TypeContainers, Data: containers})
	})

	switch {
	case err == nil, errors.Is(err, ErrClientClosed):
	case errors.Is(err, ErrClientSlow):
		logging.Warn().Str("client_id", client.ID).Msg("⚠️ Subscriber too slow, closing")
		client.close()
	default:
		logging.Error().Err(err).Str("client_id", client.ID).Msg("❌ Simulation loop failed")
		client.close()
	}
	logging.Debug().Str("client_id", client.ID).Msg("Simulation loop stopped")
}
