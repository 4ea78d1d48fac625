// internal/notify/webhook.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultWebhookTimeout = 5 * time.Second

// WebhookChannel posts each notification as JSON to a fixed URL.
type WebhookChannel struct {
	url     string
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// WebhookOption configures a WebhookChannel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient replaces the client used for delivery.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(w *WebhookChannel) {
		if client != nil {
			w.client = client
		}
	}
}

// WithWebhookTimeout bounds a single delivery attempt.
func WithWebhookTimeout(d time.Duration) WebhookOption {
	return func(w *WebhookChannel) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithWebhookLogger sets the logger delivery failures are reported to.
func WithWebhookLogger(logger *slog.Logger) WebhookOption {
	return func(w *WebhookChannel) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWebhookChannel creates a channel delivering to url.
func NewWebhookChannel(url string, opts ...WebhookOption) *WebhookChannel {
	w := &WebhookChannel{
		url:     url,
		client:  http.DefaultClient,
		timeout: defaultWebhookTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type webhookPayload struct {
	RecipientID string `json:"recipient_id"`
	Message     string `json:"message"`
}

// Notify delivers the message. Errors are logged, never returned.
func (w *WebhookChannel) Notify(ctx context.Context, recipientID, message string) {
	if err := w.deliver(ctx, recipientID, message); err != nil {
		w.logger.LogAttrs(ctx, slog.LevelWarn, "webhook notification failed",
			slog.String("recipient_id", recipientID),
			slog.String("error", err.Error()),
		)
	}
}

func (w *WebhookChannel) deliver(ctx context.Context, recipientID, message string) error {
	body, err := json.Marshal(webhookPayload{RecipientID: recipientID, Message: message})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// The state change is already committed; a cancelled caller must not abort delivery.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	return nil
}
