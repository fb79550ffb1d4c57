package notify

import (
	"context"
	"sync"
)

// FakeSink records alerts for test assertions. Every accepted alert is
// also sent on Received when there is room.
type FakeSink struct {
	mu       sync.Mutex
	alerts   []Alert
	err      error
	Received chan Alert
}

// NewFakeSink creates a FakeSink for testing.
func NewFakeSink() *FakeSink {
	return &FakeSink{Received: make(chan Alert, 64)}
}

// Notify records the alert, or returns the configured error.
func (f *FakeSink) Notify(ctx context.Context, a Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.alerts = append(f.alerts, a)
	select {
	case f.Received <- a:
	default:
	}
	return nil
}

// SetError makes subsequent Notify calls fail with err.
func (f *FakeSink) SetError(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// Alerts returns a copy of the recorded alerts.
func (f *FakeSink) Alerts() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Alert(nil), f.alerts...)
}
