package mqtt

import (
	"context"
	"sync"

	"github.com/sweeney/carpi-telemetry/internal/notify"
)

// FakePublisher records published alerts for test assertions.
// Safe for use from the dispatcher goroutine.
type FakePublisher struct {
	mu sync.Mutex

	// Alerts contains all alerts that were published.
	Alerts []notify.Alert

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// SystemEvents contains all lifecycle events that were published.
	SystemEvents []SystemEvent

	// PublishError, if set, will be returned by Notify.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Notify records the alert.
func (f *FakePublisher) Notify(ctx context.Context, a notify.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}

	payload, err := FormatPayload(a)
	if err != nil {
		return err
	}
	f.Alerts = append(f.Alerts, a)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the lifecycle event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SystemEvents = append(f.SystemEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Connected
}

// SetConnected changes what IsConnected reports.
func (f *FakePublisher) SetConnected(up bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = up
}

// Published returns the number of recorded alerts.
func (f *FakePublisher) Published() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Alerts)
}
