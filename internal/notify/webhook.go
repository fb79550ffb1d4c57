package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookUsername is the display name used for webhook posts.
const WebhookUsername = "Car Door Watchdog"

const webhookHeader = "@everyone\n***DOOR SENSOR TRIGGERED***\nMessage: "

// WebhookPayload is the Discord-compatible message body.
type WebhookPayload struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// Webhook posts alerts to a Discord-compatible webhook URL.
type Webhook struct {
	url    string
	client *http.Client
	now    func() time.Time
}

// NewWebhook creates a webhook sink.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
		now:    time.Now,
	}
}

// FormatWebhook builds the webhook body for an alert.
func FormatWebhook(a Alert, now time.Time) ([]byte, error) {
	return json.Marshal(WebhookPayload{
		Username: WebhookUsername,
		Content:  webhookHeader + FormatMessage(a, now),
	})
}

// Notify posts the alert.
func (w *Webhook) Notify(ctx context.Context, a Alert) error {
	body, err := FormatWebhook(a, w.now())
	if err != nil {
		return fmt.Errorf("format webhook: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned %s", resp.Status)
	}
	return nil
}
