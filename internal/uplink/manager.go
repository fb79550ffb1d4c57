package uplink

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sweeney/carpi-telemetry/internal/gpio"
	"github.com/sweeney/carpi-telemetry/internal/history"
	"github.com/sweeney/carpi-telemetry/internal/logic"
	"github.com/sweeney/carpi-telemetry/internal/report"
	"github.com/sweeney/carpi-telemetry/internal/sensors"
)

// DefaultSendTimeout bounds a single transmission.
const DefaultSendTimeout = 10 * time.Second

// Config holds the manager's policy knobs.
type Config struct {
	Token           string
	LowBandwidth    bool          // omit temperature from heartbeats
	HeartbeatSensor int           // 1-based sensor whose state heartbeats carry
	SendTimeout     time.Duration // per transmission
}

// Deps are the collaborators the manager drives. Reader, Detector,
// Thermometer and Locator may be nil when the hardware is absent.
type Deps struct {
	Sender      Sender
	Queue       *Queue
	History     *history.History
	Detector    *logic.Detector
	Reader      gpio.Reader
	Thermometer sensors.Thermometer
	Locator     sensors.Locator
	Now         func() time.Time
}

// Schedule carries the tick channels that drive Run. A nil channel never fires.
type Schedule struct {
	Poll      <-chan time.Time // GPIO sampling
	Heartbeat <-chan time.Time
	Position  <-chan time.Time
}

// Manager assembles reports and runs the send protocol. All of its
// methods must be called from a single goroutine; Run provides one.
type Manager struct {
	cfg Config
	Deps
}

// NewManager creates a manager.
func NewManager(cfg Config, deps Deps) *Manager {
	if cfg.HeartbeatSensor == 0 {
		cfg.HeartbeatSensor = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Manager{cfg: cfg, Deps: deps}
}

// Run flushes any backlog left from a previous run, then services the
// schedule until ctx is cancelled, at which point it releases the sensors
// and sends a shutdown report. Handlers run to completion one at a time.
func (m *Manager) Run(ctx context.Context, sched Schedule) error {
	m.Recover(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Printf("uplink: shutting down")
			m.Shutdown(context.WithoutCancel(ctx))
			return nil
		case <-sched.Poll:
			m.Poll(ctx)
		case <-sched.Heartbeat:
			if err := m.Heartbeat(ctx); err != nil {
				log.Printf("uplink: heartbeat: %v", err)
			}
		case <-sched.Position:
			m.SamplePosition()
		}
	}
}

// Recover attempts one unconditional flush of the offline queue.
func (m *Manager) Recover(ctx context.Context) {
	if m.Queue.Len() == 0 {
		return
	}
	n := m.Queue.Len()
	if err := m.flush(ctx); err != nil {
		log.Printf("uplink: startup flush of %d reports failed: %v", n, err)
		return
	}
	log.Printf("uplink: startup flush delivered %d reports", n)
}

// Poll samples the door sensors once and dispatches an alert for every
// debounced transition. Read errors are logged and treated as no sample.
func (m *Manager) Poll(ctx context.Context) {
	if m.Reader == nil || m.Detector == nil {
		return
	}
	levels, err := m.Reader.Read()
	if err != nil {
		log.Printf("gpio read error: %v", err)
		return
	}
	for _, tr := range m.Detector.Process(logic.Input{Levels: levels, Time: m.Now()}) {
		log.Printf("sensor %d: %s", tr.SensorID, tr.Value)
		if err := m.SensorAlert(ctx, tr); err != nil {
			log.Printf("uplink: sensor alert: %v", err)
		}
	}
}

// SensorAlert turns a transition into a sensor-alert report and sends it.
func (m *Manager) SensorAlert(ctx context.Context, tr logic.Transition) error {
	r := report.New(report.KindSensorAlert, tr.At)
	r.SensorID = report.SensorID(tr.SensorID)
	r.Door = report.KnownDoor(tr.Value)
	if !tr.LastOpenedAt.IsZero() {
		r.LastOpenedAt = report.At(tr.LastOpenedAt)
	}
	r.Message = tr.Message()
	return m.Dispatch(ctx, r)
}

// Heartbeat assembles and sends a heartbeat carrying the buffered positions.
func (m *Manager) Heartbeat(ctx context.Context) error {
	r := report.New(report.KindHeartbeat, m.Now())
	r.Status = report.StatusAlive
	r.Door, r.LastOpenedAt = m.doorState()

	if !m.cfg.LowBandwidth && m.Thermometer != nil {
		if c, err := m.Thermometer.ReadCelsius(); err != nil {
			log.Printf("uplink: cpu temperature: %v", err)
		} else {
			r.CPUTempC = &c
		}
	}
	r.Positions = m.History.DrainForSend()

	return m.Dispatch(ctx, r)
}

// SamplePosition reads one GPS fix into the position history.
func (m *Manager) SamplePosition() {
	if m.Locator == nil {
		return
	}
	p, err := m.Locator.ReadFix()
	if err != nil {
		log.Printf("gps: %v", err)
		return
	}
	if _, err := m.History.Record(p); err != nil {
		log.Printf("gps: %v", err)
	}
}

// Shutdown releases the sensors and sends a status-only shutdown report
// once. A failure is logged; the report is parked like any other.
func (m *Manager) Shutdown(ctx context.Context) {
	if m.Reader != nil {
		if err := m.Reader.Close(); err != nil {
			log.Printf("gpio close: %v", err)
		}
	}
	if m.Detector != nil {
		log.Printf("uplink: %d door transitions since start", m.Detector.TransitionCount())
	}
	r := report.New(report.KindShutdown, m.Now())
	r.Status = report.StatusShuttingDown
	if err := m.Dispatch(ctx, r); err != nil {
		log.Printf("uplink: shutdown report: %v", err)
		return
	}
	log.Printf("uplink: shutdown report sent")
}

// Dispatch runs the send protocol for r:
//  1. a parked backlog is flushed first so it reaches the collector ahead
//     of r; if that fails r is parked behind it;
//  2. r is sent once with the live token;
//  3. on success the positions it carried are cleared from the history;
//  4. on failure r is parked in the offline queue.
func (m *Manager) Dispatch(ctx context.Context, r report.Report) error {
	if m.Queue.Len() > 0 {
		if err := m.flush(ctx); err != nil {
			m.park(r)
			return fmt.Errorf("flush backlog: %w", err)
		}
	}

	if err := m.send(ctx, r.Path(), []report.Report{r.WithToken(m.cfg.Token)}); err != nil {
		m.park(r)
		return fmt.Errorf("send %s: %w", r.Kind, err)
	}

	if len(r.Positions) > 0 {
		if err := m.History.ClearAfterAck(); err != nil {
			log.Printf("uplink: %v", err)
		}
	}
	return nil
}

func (m *Manager) flush(ctx context.Context) error {
	return m.Queue.Flush(m.cfg.Token, func(batch []report.Report) error {
		return m.send(ctx, report.PathHeartbeat, batch)
	})
}

func (m *Manager) send(ctx context.Context, path string, batch []report.Report) error {
	// An in-flight send finishes on its own timeout even during shutdown.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.SendTimeout)
	defer cancel()
	return m.Sender.Send(ctx, path, batch)
}

// park queues r. Once the queue holds r durably it owns r's positions, so
// they are dropped from the history to avoid sending them twice.
func (m *Manager) park(r report.Report) {
	if err := m.Queue.Enqueue(r); err != nil {
		log.Printf("uplink: %v", err)
		return
	}
	log.Printf("uplink: %s queued (%d pending)", r.Kind, m.Queue.Len())
	if len(r.Positions) > 0 {
		if err := m.History.ClearAfterAck(); err != nil {
			log.Printf("uplink: %v", err)
		}
	}
}

func (m *Manager) doorState() (report.Door, report.Millis) {
	if m.Detector == nil {
		return report.Door{}, report.Millis{}
	}
	// The door counts as closed until the first sample says otherwise.
	door := report.KnownDoor(report.DoorClosed)
	if s, ok := m.Detector.Door(m.cfg.HeartbeatSensor); ok {
		door = report.KnownDoor(s.Value)
	}
	var opened report.Millis
	if t, ok := m.Detector.LastOpenedAt(); ok {
		opened = report.At(t)
	}
	return door, opened
}
