// Command carpi-uplink samples the car's door sensors, CPU temperature and
// GPS fix and reports them to the collector, buffering to disk while the
// network is down.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/carpi-telemetry/internal/config"
	"github.com/sweeney/carpi-telemetry/internal/gpio"
	"github.com/sweeney/carpi-telemetry/internal/history"
	"github.com/sweeney/carpi-telemetry/internal/logic"
	"github.com/sweeney/carpi-telemetry/internal/sensors"
	"github.com/sweeney/carpi-telemetry/internal/uplink"
)

func main() {
	cfg, err := config.LoadUplink(os.Args[1:], os.Getenv)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Uplink) error {
	var reader gpio.Reader
	if !cfg.NoGPIO {
		r, err := gpio.NewRealReader(cfg.Chip, cfg.Lines)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		reader = r
	}

	if cfg.PrintState {
		if reader == nil {
			return fmt.Errorf("-print-state needs gpio")
		}
		defer reader.Close()
		return printState(os.Stdout, reader)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := newManager(cfg, reader, uplink.NewHTTPSender(cfg.ServerURL, cfg.SendTimeout), time.Now)

	log.Printf("started: server=%s heartbeat=%v position=%v poll=%v debounce=%v low-bandwidth=%v",
		cfg.ServerURL, cfg.HeartbeatInterval(), cfg.Position, cfg.Poll, cfg.Debounce, cfg.LowBandwidth)

	heartbeat := time.NewTicker(cfg.HeartbeatInterval())
	defer heartbeat.Stop()
	position := time.NewTicker(cfg.Position)
	defer position.Stop()

	sched := uplink.Schedule{
		Heartbeat: heartbeat.C,
		Position:  position.C,
	}
	if reader != nil {
		poll := time.NewTicker(cfg.Poll)
		defer poll.Stop()
		sched.Poll = poll.C
	}

	return m.Run(ctx, sched)
}

// newManager wires the persisted history and queue, the host sensors and
// reader into a Manager. reader may be nil.
func newManager(cfg config.Uplink, reader gpio.Reader, sender uplink.Sender, now func() time.Time) *uplink.Manager {
	hist := history.New(cfg.HistoryPath, cfg.Capacity, cfg.ThresholdFeet)
	hist.Load()

	queue := uplink.NewQueue(cfg.QueuePath, cfg.Capacity)
	queue.Load()

	deps := uplink.Deps{
		Sender:      sender,
		Queue:       queue,
		History:     hist,
		Thermometer: sensors.ThermalZone{Path: cfg.ThermalPath},
		Locator:     sensors.GPSFile{Path: cfg.GPSPath, Now: now},
		Now:         now,
	}
	if reader != nil {
		deps.Reader = reader
		deps.Detector = logic.NewDetector(len(cfg.Lines), cfg.Debounce)
	}

	return uplink.NewManager(uplink.Config{
		Token:        cfg.Token,
		LowBandwidth: cfg.LowBandwidth,
		SendTimeout:  cfg.SendTimeout,
	}, deps)
}

// printState reads the sensors once and prints one line per sensor.
func printState(w io.Writer, reader gpio.Reader) error {
	levels, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	for i, level := range levels {
		fmt.Fprintf(w, "sensor %d: %s\n", i+1, levelString(level))
	}
	return nil
}

func levelString(level int) string {
	switch level {
	case logic.RawOpen:
		return "OPEN"
	case logic.RawClosed:
		return "CLOSED"
	case gpio.Disabled:
		return "disabled"
	default:
		return fmt.Sprintf("invalid (%d)", level)
	}
}
