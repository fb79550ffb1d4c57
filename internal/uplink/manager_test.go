package uplink

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweeney/carpi-telemetry/internal/geo"
	"github.com/sweeney/carpi-telemetry/internal/gpio"
	"github.com/sweeney/carpi-telemetry/internal/history"
	"github.com/sweeney/carpi-telemetry/internal/logic"
	"github.com/sweeney/carpi-telemetry/internal/report"
	"github.com/sweeney/carpi-telemetry/internal/sensors"
)

var errOffline = errors.New("offline")

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type harness struct {
	m       *Manager
	sender  *FakeSender
	reader  *gpio.FakeReader
	thermo  *sensors.FakeThermometer
	locator *sensors.FakeLocator
	clock   *fakeClock
	dir     string
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		sender:  NewFakeSender(),
		reader:  gpio.NewFakeReader([]int{1, 1, 1, 1}),
		thermo:  &sensors.FakeThermometer{Celsius: 51.5},
		locator: &sensors.FakeLocator{},
		clock:   &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)},
		dir:     t.TempDir(),
	}
	h.m = h.build(cfg)
	return h
}

// build creates a manager over the harness's state directory, as a
// fresh process would after a restart.
func (h *harness) build(cfg Config) *Manager {
	if cfg.Token == "" {
		cfg.Token = "tok"
	}
	q := NewQueue(filepath.Join(h.dir, "queue.json"), 0)
	q.Load()
	hist := history.New(filepath.Join(h.dir, "positions.json"), 0, geo.DefaultThresholdFeet)
	hist.Load()
	return NewManager(cfg, Deps{
		Sender:      h.sender,
		Queue:       q,
		History:     hist,
		Detector:    logic.NewDetector(4, logic.DefaultDebounce),
		Reader:      h.reader,
		Thermometer: h.thermo,
		Locator:     h.locator,
		Now:         h.clock.Now,
	})
}

func TestHeartbeatContents(t *testing.T) {
	h := newHarness(t, Config{})

	if err := h.m.Heartbeat(context.Background()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if len(h.sender.Batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(h.sender.Batches))
	}
	b := h.sender.Batches[0]
	if b.Path != report.PathHeartbeat || len(b.Reports) != 1 {
		t.Fatalf("unexpected batch: %+v", b)
	}
	r := b.Reports[0]
	if r.Kind != report.KindHeartbeat || r.Status != report.StatusAlive {
		t.Errorf("kind/status: %s/%s", r.Kind, r.Status)
	}
	if r.AuthToken != "tok" {
		t.Errorf("token: got %q", r.AuthToken)
	}
	if r.Timestamp != h.clock.now.UnixMilli() {
		t.Errorf("timestamp: got %d", r.Timestamp)
	}
	if r.CPUTempC == nil || *r.CPUTempC != 51.5 {
		t.Errorf("temperature: got %v", r.CPUTempC)
	}
	if !r.Door.Known || r.Door.Value != report.DoorClosed {
		t.Errorf("door should start closed before the first sample, got %s", r.Door)
	}
	if r.LastOpenedAt.Valid {
		t.Error("lastOpenedAt should be never")
	}
}

func TestHeartbeatLowBandwidth(t *testing.T) {
	h := newHarness(t, Config{LowBandwidth: true})

	if err := h.m.Heartbeat(context.Background()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if h.thermo.Reads != 0 {
		t.Errorf("thermometer read %d times in low-bandwidth mode", h.thermo.Reads)
	}
	if h.sender.Reports()[0].CPUTempC != nil {
		t.Error("low-bandwidth heartbeat carried a temperature")
	}
}

func TestHeartbeatTemperatureFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.thermo.Err = errors.New("no thermal zone")

	if err := h.m.Heartbeat(context.Background()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if h.sender.Reports()[0].CPUTempC != nil {
		t.Error("failed temperature read should leave the field absent")
	}
}

func TestHeartbeatCarriesDoorState(t *testing.T) {
	h := newHarness(t, Config{})
	h.reader.Samples = [][]int{{0, 1, 1, 1}}

	h.m.Poll(context.Background())
	h.clock.Advance(time.Second)
	h.sender.Reset()

	if err := h.m.Heartbeat(context.Background()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	r := h.sender.Reports()[0]
	if !r.Door.IsOpen() {
		t.Errorf("door: got %s, want OPEN", r.Door)
	}
	opened, ok := r.LastOpenedAt.Time()
	if !ok || !opened.Equal(h.clock.now.Add(-time.Second)) {
		t.Errorf("lastOpenedAt: got %v %v", opened, ok)
	}
}

func TestPollSendsSensorAlerts(t *testing.T) {
	h := newHarness(t, Config{})
	h.reader.Samples = [][]int{{1, 1, 1, 1}, {1, 0, 1, 1}}

	h.m.Poll(context.Background())
	if len(h.sender.Batches) != 0 {
		t.Fatalf("steady CLOSED sample should not alert, got %d batches", len(h.sender.Batches))
	}

	h.clock.Advance(time.Second)
	h.m.Poll(context.Background())
	if len(h.sender.Batches) != 1 {
		t.Fatalf("expected 1 alert, got %d", len(h.sender.Batches))
	}
	b := h.sender.Batches[0]
	if b.Path != report.PathSensorActivate {
		t.Errorf("path: got %s", b.Path)
	}
	r := b.Reports[0]
	if r.Kind != report.KindSensorAlert || r.SensorID != 2 || !r.Door.IsOpen() {
		t.Errorf("unexpected alert: %+v", r)
	}
	if r.Message != "Door opened" {
		t.Errorf("msg: got %q", r.Message)
	}
	if r.Timestamp != h.clock.now.UnixMilli() || r.LastOpenedAt.Value != r.Timestamp {
		t.Errorf("timestamps: %d / %+v", r.Timestamp, r.LastOpenedAt)
	}
}

func TestPollReadErrorIsNoSample(t *testing.T) {
	h := newHarness(t, Config{})
	h.reader.ReadError = errors.New("line busy")

	h.m.Poll(context.Background())
	if h.sender.Attempts != 0 {
		t.Errorf("read error caused %d sends", h.sender.Attempts)
	}
}

// Outage: R1 heartbeat, R2 alert, R3 heartbeat all fail. When the
// collector returns, R4 must arrive after R1..R3, which arrive in order.
func TestOutageReplayOrder(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	h.sender.SendError = errOffline
	var want []string

	if err := h.m.Heartbeat(ctx); err == nil {
		t.Fatal("expected R1 to fail")
	}
	want = append(want, h.m.Queue.Items()[0].ID)

	h.clock.Advance(time.Second)
	r2 := logic.Transition{SensorID: 1, Value: report.DoorOpen, At: h.clock.now, LastOpenedAt: h.clock.now}
	if err := h.m.SensorAlert(ctx, r2); err == nil {
		t.Fatal("expected R2 to fail")
	}
	h.clock.Advance(time.Second)
	if err := h.m.Heartbeat(ctx); err == nil {
		t.Fatal("expected R3 to fail")
	}
	for _, r := range h.m.Queue.Items()[1:] {
		want = append(want, r.ID)
	}
	if len(want) != 3 {
		t.Fatalf("expected 3 parked reports, got %d", len(want))
	}

	h.sender.SendError = nil
	h.clock.Advance(time.Second)
	if err := h.m.Heartbeat(ctx); err != nil {
		t.Fatalf("R4: %v", err)
	}

	if len(h.sender.Batches) != 2 {
		t.Fatalf("expected backlog batch then R4, got %d batches", len(h.sender.Batches))
	}
	backlog := h.sender.Batches[0]
	if backlog.Path != report.PathHeartbeat {
		t.Errorf("backlog path: got %s", backlog.Path)
	}
	for i, r := range backlog.Reports {
		if r.ID != want[i] {
			t.Errorf("backlog[%d]: got %s, want %s", i, r.ID, want[i])
		}
		if r.AuthToken != "tok" {
			t.Errorf("backlog[%d] replayed without token", i)
		}
	}
	if backlog.Reports[1].Kind != report.KindSensorAlert {
		t.Errorf("R2 kind lost in queue: %s", backlog.Reports[1].Kind)
	}
	last := h.sender.Batches[1].Reports[0]
	if last.Timestamp != h.clock.now.UnixMilli() {
		t.Errorf("R4 should be last; got timestamp %d", last.Timestamp)
	}
	if h.m.Queue.Len() != 0 {
		t.Errorf("queue not drained: %d", h.m.Queue.Len())
	}
}

func TestFlushFailureQueuesBehindBacklog(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()

	h.sender.SendError = errOffline
	h.m.Heartbeat(ctx)
	h.m.Heartbeat(ctx)

	// One attempt per heartbeat: the second stops at the failed flush.
	if h.sender.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", h.sender.Attempts)
	}
	if h.m.Queue.Len() != 2 {
		t.Errorf("expected 2 parked, got %d", h.m.Queue.Len())
	}
}

func TestPositionsClearedAfterAck(t *testing.T) {
	h := newHarness(t, Config{})
	h.locator.Fixes = []report.Position{report.Fix(37.0, -122.0, 10), report.Fix(37.01, -122.0, 20)}

	h.m.SamplePosition()
	h.m.SamplePosition()
	if h.m.History.Len() != 2 {
		t.Fatalf("expected 2 fixes, got %d", h.m.History.Len())
	}

	if err := h.m.Heartbeat(context.Background()); err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if got := len(h.sender.Reports()[0].Positions); got != 2 {
		t.Errorf("heartbeat carried %d positions, want 2", got)
	}
	if h.m.History.Len() != 0 {
		t.Errorf("history not cleared after ack: %d", h.m.History.Len())
	}
}

func TestPositionsMoveToQueueOnFailure(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	h.locator.Fixes = []report.Position{report.Fix(37.0, -122.0, 10)}
	h.m.SamplePosition()

	h.sender.SendError = errOffline
	h.m.Heartbeat(ctx)
	if h.m.History.Len() != 0 {
		t.Errorf("positions should now belong to the queue, history has %d", h.m.History.Len())
	}
	if got := len(h.m.Queue.Items()[0].Positions); got != 1 {
		t.Errorf("parked heartbeat has %d positions", got)
	}

	h.sender.SendError = nil
	h.m.Heartbeat(ctx)
	total := 0
	for _, r := range h.sender.Reports() {
		total += len(r.Positions)
	}
	if total != 1 {
		t.Errorf("fix delivered %d times, want once", total)
	}
}

func TestRecoverAfterRestart(t *testing.T) {
	h := newHarness(t, Config{})
	h.sender.SendError = errOffline
	h.m.Heartbeat(context.Background())

	h.sender.Reset()
	restarted := h.build(Config{})
	if restarted.Queue.Len() != 1 {
		t.Fatalf("queue not restored: %d", restarted.Queue.Len())
	}

	restarted.Recover(context.Background())
	if len(h.sender.Batches) != 1 || len(h.sender.Batches[0].Reports) != 1 {
		t.Fatalf("expected one replayed batch, got %+v", h.sender.Batches)
	}
	if restarted.Queue.Len() != 0 {
		t.Errorf("queue not cleared after recovery")
	}
}

func TestRecoverFailureKeepsQueue(t *testing.T) {
	h := newHarness(t, Config{})
	h.sender.SendError = errOffline
	h.m.Heartbeat(context.Background())

	h.m.Recover(context.Background())
	if h.m.Queue.Len() != 1 {
		t.Errorf("failed recovery changed the queue: %d", h.m.Queue.Len())
	}
}

func TestShutdown(t *testing.T) {
	h := newHarness(t, Config{})

	h.m.Shutdown(context.Background())
	if !h.reader.Closed {
		t.Error("reader not closed")
	}
	r := h.sender.Reports()[0]
	if r.Kind != report.KindShutdown || r.Status != report.StatusShuttingDown {
		t.Errorf("unexpected shutdown report: %+v", r)
	}
	if len(r.Positions) != 0 || r.CPUTempC != nil {
		t.Error("shutdown report should be status only")
	}
}

func TestShutdownFailureIsQueuedNotRetried(t *testing.T) {
	h := newHarness(t, Config{})
	h.sender.SendError = errOffline

	h.m.Shutdown(context.Background())
	if h.sender.Attempts != 1 {
		t.Errorf("expected a single attempt, got %d", h.sender.Attempts)
	}
	if h.m.Queue.Len() != 1 {
		t.Errorf("shutdown report not parked")
	}
}

func TestRunLoop(t *testing.T) {
	h := newHarness(t, Config{})
	heartbeat := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() {
		done <- h.m.Run(ctx, Schedule{Heartbeat: heartbeat})
	}()

	heartbeat <- time.Time{}
	heartbeat <- time.Time{}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	reports := h.sender.Reports()
	if len(reports) != 3 {
		t.Fatalf("expected 2 heartbeats and a shutdown, got %d", len(reports))
	}
	if reports[2].Kind != report.KindShutdown {
		t.Errorf("last report: got %s", reports[2].Kind)
	}
	if !h.reader.Closed {
		t.Error("reader not closed on shutdown")
	}
}

// A delivered backlog whose cache file cannot be removed still counts as
// delivered, so the new report goes out right behind it.
func TestDispatchAfterFlushWithStaleQueueFile(t *testing.T) {
	h := newHarness(t, Config{})
	ctx := context.Background()
	stale := filepath.Join(h.dir, "queue.json")
	if err := os.MkdirAll(stale, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stale, "keep"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	h.m = h.build(Config{})

	h.sender.SendError = errOffline
	if err := h.m.Heartbeat(ctx); err == nil {
		t.Fatal("expected the first heartbeat to fail")
	}
	h.sender.SendError = nil
	h.clock.Advance(time.Minute)
	if err := h.m.Heartbeat(ctx); err != nil {
		t.Fatalf("heartbeat after recovery: %v", err)
	}
	if len(h.sender.Batches) != 2 {
		t.Fatalf("expected backlog then new heartbeat, got %d batches", len(h.sender.Batches))
	}
	if h.m.Queue.Len() != 0 {
		t.Errorf("queue: %d left", h.m.Queue.Len())
	}
}
