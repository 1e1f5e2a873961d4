package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

type recordingSender struct {
	name string
	err  error
	got  []Message
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.got = append(r.got, msg)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifyDeploy_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, []string{EventDeployError}, quietLogger())

	require.NoError(t, n.NotifyDeploy(context.Background(), domain.DeployEvent{Phase: domain.PhaseComplete}))
	assert.Empty(t, s.got)

	require.NoError(t, n.NotifyDeploy(context.Background(), domain.DeployEvent{
		DeploymentID: "dep-1", Phase: domain.PhaseError, Error: "execution reverted",
	}))
	require.Len(t, s.got, 1)
	assert.True(t, s.got[0].Failed)
	assert.Equal(t, "execution reverted", s.got[0].Body)
	assert.Equal(t, "dep-1", s.got[0].Fields["deployment"])
}

func TestNotifyDeploy_IgnoresIntermediatePhases(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := NewNotifier([]Sender{s}, nil, quietLogger())
	require.NoError(t, n.NotifyDeploy(context.Background(), domain.DeployEvent{Phase: domain.PhaseCreating}))
	assert.Empty(t, s.got)
}

func TestNotify_CollectsSenderErrors(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("down")}
	good := &recordingSender{name: "good"}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.Notify(context.Background(), EventDeployComplete, Message{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: down")
	assert.Len(t, good.got, 1)
}

func TestNilNotifierIsDisabled(t *testing.T) {
	var n *Notifier
	assert.False(t, n.Enabled())
	assert.NoError(t, n.NotifyDeploy(context.Background(), domain.DeployEvent{Phase: domain.PhaseError}))
}

func TestDiscordSender(t *testing.T) {
	var payload struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), Message{
		Title: "Matchbox deployment failed", Body: "boom", Failed: true,
		Fields: map[string]string{"vault": "0xv", "owner": "0xo", "tx": ""},
	})
	require.NoError(t, err)
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, discordColorFail, payload.Embeds[0].Color)
	require.Len(t, payload.Embeds[0].Fields, 2)
	assert.Equal(t, "owner", payload.Embeds[0].Fields[0].Name)
}

func TestTelegramSender(t *testing.T) {
	var (
		path    string
		payload map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42").WithAPIBase(srv.URL)
	require.NoError(t, s.Send(context.Background(), Message{
		Title: "Matchbox deployed", Fields: map[string]string{"vault": "0xv"},
	}))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "42", payload["chat_id"])
	assert.Equal(t, "Matchbox deployed\nvault: 0xv", payload["text"])
}

func TestTelegramSender_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewTelegramSender("tok", "42").WithAPIBase(srv.URL).Send(context.Background(), Message{Title: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
