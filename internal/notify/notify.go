// Package notify delivers confirmations about security-relevant vault
// events (password rotation, shares sent and received) to the owner.
package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/keydozer/internal/logging"
	"github.com/dmitrijs2005/keydozer/internal/netx"
)

type Notifier interface {
	Notify(ctx context.Context, ownerID, message string) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("module", "notify")}
}

func (n *LogNotifier) Notify(ctx context.Context, ownerID, message string) error {
	n.log.Info(ctx, "notification", "owner", ownerID, "message", message)
	return nil
}

// WebhookNotifier posts every notification as JSON to a fixed URL and
// also logs it.
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    logging.Logger
}

func NewWebhookNotifier(url string, log logging.Logger) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log.With("module", "notify"),
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, ownerID, message string) error {
	n.log.Info(ctx, "notification", "owner", ownerID, "message", message)
	return netx.PostJSON(ctx, n.client, n.url, Message{OwnerID: ownerID, Text: message})
}

type Message struct {
	OwnerID string `json:"owner_id"`
	Text    string `json:"message"`
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Notify(ctx context.Context, ownerID, message string) error {
	r.mu.Lock()
	r.msgs = append(r.msgs, Message{OwnerID: ownerID, Text: message})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}
