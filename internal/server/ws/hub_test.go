package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchbox/internal/cache/memory"
	"github.com/alanyoungcy/matchbox/internal/domain"
	"github.com/alanyoungcy/matchbox/internal/service"
)

type frame struct {
	Type    string          `json:"type"`
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

func startHub(t *testing.T) (*memory.SignalBus, *httptest.Server, context.CancelFunc) {
	t.Helper()
	bus := memory.NewSignalBus()
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return bus, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	kind, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	var f frame
	require.NoError(t, json.Unmarshal(data, &f))
	return f
}

func publish(t *testing.T, bus *memory.SignalBus, ev domain.DeployEvent) {
	t.Helper()
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), service.DeployChannelPrefix+ev.DeploymentID, data))
}

func TestHub_DeliversSubscribedDeploymentOnly(t *testing.T) {
	bus, srv, _ := startHub(t)

	conn := dial(t, srv, "?deployment=dep-2")
	assert.Equal(t, "hub_status", readFrame(t, conn).Type)

	publish(t, bus, domain.DeployEvent{DeploymentID: "dep-1", Phase: domain.PhaseCreating})
	publish(t, bus, domain.DeployEvent{DeploymentID: "dep-2", Phase: domain.PhaseCreating})

	f := readFrame(t, conn)
	assert.Equal(t, "deploy_event", f.Type)
	assert.Equal(t, "ch:deploy:dep-2", f.Channel)

	var ev domain.DeployEvent
	require.NoError(t, json.Unmarshal(f.Payload, &ev))
	assert.Equal(t, "dep-2", ev.DeploymentID)
	assert.Equal(t, domain.PhaseCreating, ev.Phase)
}

func TestHub_DefaultReceivesAll(t *testing.T) {
	bus, srv, _ := startHub(t)

	conn := dial(t, srv, "")
	readFrame(t, conn)

	publish(t, bus, domain.DeployEvent{DeploymentID: "dep-9", Phase: domain.PhaseComplete})
	assert.Equal(t, "ch:deploy:dep-9", readFrame(t, conn).Channel)
}

func TestHub_ClosesClientsOnShutdown(t *testing.T) {
	_, srv, cancel := startHub(t)

	conn := dial(t, srv, "")
	readFrame(t, conn)

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestClient_SubscriptionFilter(t *testing.T) {
	c := &client{subs: map[string]bool{}}
	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"ch:deploy:a", "ch:other"}})
	assert.True(t, c.isSubscribed("ch:deploy:a"))
	assert.False(t, c.isSubscribed("ch:other"))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{AllDeployments}})
	assert.True(t, c.isSubscribed("ch:deploy:zzz"))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{AllDeployments, "ch:deploy:a"}})
	assert.False(t, c.isSubscribed("ch:deploy:a"))
}
