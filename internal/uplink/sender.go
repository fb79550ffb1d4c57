// Package uplink delivers telemetry reports to the collector without
// losing any: failed reports are parked in a durable offline queue and
// replayed, in order, the next time the collector is reachable.
package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

// ErrUnauthorized is returned when the collector rejects the auth token.
// The manager handles it exactly like a transient failure.
var ErrUnauthorized = errors.New("uplink: unauthorized")

// StatusError is a non-2xx response from the collector.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("collector returned %d", e.Code)
	}
	return fmt.Sprintf("collector returned %d: %s", e.Code, e.Body)
}

// Sender transmits a batch of reports to a collector endpoint.
type Sender interface {
	// Send posts batch as a JSON array to path. Any non-nil error means
	// the batch must be treated as undelivered.
	Send(ctx context.Context, path string, batch []report.Report) error
}

// HTTPSender posts batches over HTTP.
type HTTPSender struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSender creates a sender for the collector at baseURL.
func NewHTTPSender(baseURL string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Send posts batch to baseURL+path.
func (s *HTTPSender) Send(ctx context.Context, path string, batch []report.Report) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return nil
}
