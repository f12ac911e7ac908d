package websocket

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecopunto-backend/internal/logging"
	"ecopunto-backend/internal/middleware"
	"ecopunto-backend/internal/models"
	"ecopunto-backend/internal/simulation"
	"ecopunto-backend/internal/storage"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

type fixture struct {
	hub    *Hub
	store  *storage.MemoryStore
	server *httptest.Server
	url    string
}

func newFixture(t *testing.T, mutator simulation.Mutator, interval time.Duration) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	require.NoError(t, storage.Seed(context.Background(), store, "demo-user", time.Now()))

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	sim := simulation.New(store, mutator, "demo-user",
		simulation.WithListener(func(_ context.Context, n models.Notification, _ models.Container) {
			hub.Broadcast(TypeNotification, n)
		}),
	)

	handler := middleware.DemoUser("demo-user")(HandleWebSocket(hub, sim, interval))
	server := httptest.NewServer(handler)

	t.Cleanup(func() {
		server.Close()
		cancel()
	})

	return &fixture{
		hub:    hub,
		store:  store,
		server: server,
		url:    "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/containers",
	}
}

func (f *fixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var f frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func readUntil(t *testing.T, conn *websocket.Conn, msgType string) frame {
	t.Helper()
	for i := 0; i < 50; i++ {
		if f := readFrame(t, conn); f.Type == msgType {
			return f
		}
	}
	t.Fatalf("no %q frame received", msgType)
	return frame{}
}

var never = simulation.MutatorFunc(func(models.Container) (int, bool) { return 0, false })

func TestSubscriberReceivesSnapshotOnConnect(t *testing.T) {
	f := newFixture(t, never, time.Hour)
	conn := f.dial(t)

	msg := readFrame(t, conn)
	assert.Equal(t, TypeContainers, msg.Type)

	var containers []models.Container
	require.NoError(t, json.Unmarshal(msg.Data, &containers))
	require.Len(t, containers, len(storage.DemoContainers))
	assert.Equal(t, "Parque Central", containers[0].Name)
	assert.Equal(t, 25, containers[0].FillLevel)
}

func TestSubscriberReceivesTickSnapshots(t *testing.T) {
	always := simulation.MutatorFunc(func(models.Container) (int, bool) { return 1, true })
	f := newFixture(t, always, 10*time.Millisecond)
	conn := f.dial(t)

	readUntil(t, conn, TypeContainers)
	msg := readUntil(t, conn, TypeContainers)

	var containers []models.Container
	require.NoError(t, json.Unmarshal(msg.Data, &containers))
	assert.Greater(t, containers[0].FillLevel, 25)
}

func TestNotificationIsBroadcast(t *testing.T) {
	// Mercado Sur starts at 55; a single +30 crosses the threshold.
	bump := simulation.MutatorFunc(func(c models.Container) (int, bool) {
		return 30, c.Name == "Mercado Sur" && c.FillLevel < 80
	})
	f := newFixture(t, bump, 10*time.Millisecond)
	conn := f.dial(t)

	msg := readUntil(t, conn, TypeNotification)

	var n models.Notification
	require.NoError(t, json.Unmarshal(msg.Data, &n))
	assert.Contains(t, n.Message, "Mercado Sur")
	assert.Contains(t, n.Message, "(85%)")
	assert.Equal(t, models.Unread, n.Read)
}

func TestPingGetsPong(t *testing.T) {
	f := newFixture(t, never, time.Hour)
	conn := f.dial(t)
	readFrame(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	msg := readUntil(t, conn, TypePong)
	_, err := time.Parse(time.RFC3339, msg.Timestamp)
	assert.NoError(t, err)
}

func TestCloseUnregistersClient(t *testing.T) {
	f := newFixture(t, never, 10*time.Millisecond)
	conn := f.dial(t)
	readFrame(t, conn)

	assert.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return f.hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	f := newFixture(t, never, time.Hour)
	a := f.dial(t)
	b := f.dial(t)
	readFrame(t, a)
	readFrame(t, b)

	require.Eventually(t, func() bool { return f.hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	f.hub.Broadcast(TypeNotification, models.Notification{ID: "n-1", Message: "hola"})

	for _, conn := range []*websocket.Conn{a, b} {
		msg := readUntil(t, conn, TypeNotification)
		assert.Contains(t, string(msg.Data), `"n-1"`)
	}
}

func TestClientSendAfterClose(t *testing.T) {
	hub := NewHub()
	c, ctx := NewClient(context.Background(), "demo-user", nil, hub)
	c.close()

	assert.ErrorIs(t, c.Send(Message{Type: TypeContainers}), ErrClientClosed)
	assert.Error(t, ctx.Err())
}
