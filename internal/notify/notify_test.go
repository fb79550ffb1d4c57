package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

var at = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func TestFormatMessage(t *testing.T) {
	a := Alert{SensorID: 2, Door: report.DoorOpen, At: at}
	got := FormatMessage(a, at.Add(3*time.Minute))

	for _, want := range []string{"Sensor ID `2` is now `OPEN`", "3 minutes ago", "[1767268800000]"} {
		if !strings.Contains(got, want) {
			t.Errorf("message %q missing %q", got, want)
		}
	}
}

func TestFormatWebhook(t *testing.T) {
	body, err := FormatWebhook(Alert{SensorID: 1, Door: report.DoorClosed, At: at}, at)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	var p WebhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if p.Username != "Car Door Watchdog" {
		t.Errorf("username: got %q", p.Username)
	}
	if !strings.HasPrefix(p.Content, "@everyone\n***DOOR SENSOR TRIGGERED***\nMessage: Sensor ID `1` is now `CLOSED`") {
		t.Errorf("content: got %q", p.Content)
	}
}

func TestWebhookNotify(t *testing.T) {
	var got WebhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, time.Second)
	if err := w.Notify(context.Background(), Alert{SensorID: 3, Door: report.DoorOpen, At: at}); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if !strings.Contains(got.Content, "Sensor ID `3`") {
		t.Errorf("unexpected content: %q", got.Content)
	}
}

func TestWebhookNotifyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if err := NewWebhook(srv.URL, time.Second).Notify(context.Background(), Alert{At: at}); err == nil {
		t.Error("expected error for 429")
	}
}

func waitAlert(t *testing.T, s *FakeSink) Alert {
	t.Helper()
	select {
	case a := <-s.Received:
		return a
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for alert")
		return Alert{}
	}
}

func TestDispatcherDeliversToAllSinks(t *testing.T) {
	a, b := NewFakeSink(), NewFakeSink()
	d := NewDispatcher(0, a, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	if !d.Enqueue(Alert{SensorID: 4, Door: report.DoorOpen, At: at}) {
		t.Fatal("enqueue rejected")
	}
	if got := waitAlert(t, a); got.SensorID != 4 {
		t.Errorf("sink a: got sensor %d", got.SensorID)
	}
	if got := waitAlert(t, b); got.SensorID != 4 {
		t.Errorf("sink b: got sensor %d", got.SensorID)
	}
}

func TestDispatcherSinkErrorDoesNotStopOthers(t *testing.T) {
	failing, ok := NewFakeSink(), NewFakeSink()
	failing.SetError(errors.New("down"))
	d := NewDispatcher(0, failing, ok)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	d.Enqueue(Alert{SensorID: 1, At: at})
	d.Enqueue(Alert{SensorID: 2, At: at})
	waitAlert(t, ok)
	waitAlert(t, ok)
	if len(failing.Alerts()) != 0 {
		t.Error("failing sink recorded alerts")
	}
}

func TestDispatcherClose(t *testing.T) {
	s := NewFakeSink()
	d := NewDispatcher(0, s)

	d.Enqueue(Alert{SensorID: 1, At: at})
	d.Close()
	d.Close()

	if d.Enqueue(Alert{SensorID: 2, At: at}) {
		t.Error("enqueue accepted after close")
	}

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after close")
	}
	if got := s.Alerts(); len(got) != 1 || got[0].SensorID != 1 {
		t.Errorf("pending alert not drained: %+v", got)
	}
}

func TestDispatcherWithoutSinks(t *testing.T) {
	if NewDispatcher(0).Enqueue(Alert{}) {
		t.Error("dispatcher without sinks accepted an alert")
	}
}

func TestDispatcherDrainIsUnthrottled(t *testing.T) {
	s := NewFakeSink()
	d := NewDispatcher(60, s)
	for i := 1; i <= 4; i++ {
		d.Enqueue(Alert{SensorID: i, At: at})
	}
	d.Close()

	start := time.Now()
	d.Run(context.Background())
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("drain took %v, want it unthrottled", elapsed)
	}
	if got := len(s.Alerts()); got != 4 {
		t.Errorf("delivered %d alerts, want 4", got)
	}
}

// stuckSink blocks until its context ends.
type stuckSink struct{}

func (stuckSink) Notify(ctx context.Context, a Alert) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestDispatcherDrainDeadline(t *testing.T) {
	d := NewDispatcher(0, stuckSink{})
	d.grace = 50 * time.Millisecond
	for i := 1; i <= 3; i++ {
		d.Enqueue(Alert{SensorID: i, At: at})
	}
	d.Close()

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run blocked past the drain deadline")
	}
}
