// Package notify fans deployment alerts out to chat channels (Telegram,
// Discord), filtered by event type.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/alanyoungcy/matchbox/internal/domain"
)

// Event names accepted in the notify.events filter.
const (
	EventDeployComplete = "deploy_complete"
	EventDeployError    = "deploy_error"
)

// Message is one alert, rendered by each sender in its own format.
type Message struct {
	Title  string
	Body   string
	Fields map[string]string
	Failed bool
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Notifier dispatches notifications to one or more Senders. Only events in
// the allowed set are forwarded; an empty set allows everything.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that will deliver to the given senders.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Enabled reports whether any sender is registered.
func (n *Notifier) Enabled() bool {
	return n != nil && len(n.senders) > 0
}

// Notify sends msg to all senders if event passes the filter.
func (n *Notifier) Notify(ctx context.Context, event string, msg Message) error {
	if !n.Enabled() {
		return nil
	}
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "notify: event filtered out", slog.String("event", event))
		return nil
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, msg); err != nil {
			n.logger.ErrorContext(ctx, "notify: sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// NotifyDeploy alerts on terminal deployment phases. Other phases are
// ignored.
func (n *Notifier) NotifyDeploy(ctx context.Context, ev domain.DeployEvent) error {
	switch ev.Phase {
	case domain.PhaseComplete:
		return n.Notify(ctx, EventDeployComplete, Message{
			Title: "Matchbox deployed",
			Body:  "Vault created and sequence initialized.",
			Fields: map[string]string{
				"deployment": ev.DeploymentID,
				"owner":      ev.Owner,
				"vault":      ev.Vault,
				"tx":         ev.TxHash,
			},
		})
	case domain.PhaseError:
		return n.Notify(ctx, EventDeployError, Message{
			Title: "Matchbox deployment failed",
			Body:  ev.Error,
			Fields: map[string]string{
				"deployment": ev.DeploymentID,
				"owner":      ev.Owner,
				"vault":      ev.Vault,
			},
			Failed: true,
		})
	}
	return nil
}

// plainText renders msg for channels without rich formatting.
func plainText(msg Message) string {
	var b strings.Builder
	b.WriteString(msg.Title)
	if msg.Body != "" {
		b.WriteString("\n")
		b.WriteString(msg.Body)
	}
	for _, k := range sortedKeys(msg.Fields) {
		if v := msg.Fields[k]; v != "" {
			fmt.Fprintf(&b, "\n%s: %s", k, v)
		}
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// postJSON sends payload and treats any non-2xx as an error.
func postJSON(ctx context.Context, client *http.Client, url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
