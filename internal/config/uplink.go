package config

import (
	"fmt"
	"time"

	"github.com/sweeney/carpi-telemetry/internal/geo"
	"github.com/sweeney/carpi-telemetry/internal/gpio"
	"github.com/sweeney/carpi-telemetry/internal/logic"
	"github.com/sweeney/carpi-telemetry/internal/sensors"
	"github.com/sweeney/carpi-telemetry/internal/uplink"
)

// Uplink configures the device daemon.
type Uplink struct {
	Token     string
	ServerURL string

	Heartbeat    time.Duration // doubled in low-bandwidth mode
	Position     time.Duration
	Poll         time.Duration
	Debounce     time.Duration
	SendTimeout  time.Duration
	LowBandwidth bool

	Chip   string
	Lines  []int // one per sensor; a negative offset disables the sensor
	NoGPIO bool

	ThresholdFeet float64
	Capacity      int
	HistoryPath   string
	QueuePath     string
	ThermalPath   string
	GPSPath       string

	PrintState bool
}

// HeartbeatInterval returns the effective heartbeat period.
func (c Uplink) HeartbeatInterval() time.Duration {
	if c.LowBandwidth {
		return 2 * c.Heartbeat
	}
	return c.Heartbeat
}

// Validate checks that the daemon can start.
func (c Uplink) Validate() error {
	if c.PrintState {
		return nil
	}
	if c.Token == "" {
		return fmt.Errorf("%w: auth token (-token or CARPI_TOKEN)", ErrMissing)
	}
	if c.ServerURL == "" {
		return fmt.Errorf("%w: server url (-server or CARPI_SERVER_URL)", ErrMissing)
	}
	if c.Heartbeat <= 0 || c.Position <= 0 || c.Poll <= 0 {
		return fmt.Errorf("heartbeat, position and poll intervals must be positive")
	}
	if len(c.Lines) == 0 || len(c.Lines) > 4 {
		return fmt.Errorf("expected 1 to 4 gpio lines, got %d", len(c.Lines))
	}
	return nil
}

// LoadUplink parses args over environment defaults and validates the result.
func LoadUplink(args []string, getenv func(string) string) (Uplink, error) {
	e := &env{getenv: getenv}
	var c Uplink

	fs := newFlagSet("carpi-uplink")
	fs.StringVar(&c.Token, "token", e.string("CARPI_TOKEN", ""), "shared auth token")
	fs.StringVar(&c.ServerURL, "server", e.string("CARPI_SERVER_URL", ""), "collector base URL")
	fs.DurationVar(&c.Heartbeat, "heartbeat", e.duration("CARPI_HEARTBEAT", 60*time.Second), "heartbeat interval")
	fs.DurationVar(&c.Position, "position", e.duration("CARPI_POSITION_INTERVAL", 15*time.Second), "GPS sampling interval")
	fs.DurationVar(&c.Poll, "poll", e.duration("CARPI_POLL", 25*time.Millisecond), "GPIO polling interval")
	fs.DurationVar(&c.Debounce, "debounce", e.duration("CARPI_DEBOUNCE", logic.DefaultDebounce), "door sensor debounce window")
	fs.DurationVar(&c.SendTimeout, "send-timeout", e.duration("CARPI_SEND_TIMEOUT", uplink.DefaultSendTimeout), "per-request timeout")
	fs.BoolVar(&c.LowBandwidth, "low-bandwidth", e.bool("CARPI_LOW_BANDWIDTH", false), "halve heartbeat rate and omit temperature")
	fs.StringVar(&c.Chip, "chip", e.string("CARPI_GPIO_CHIP", gpio.DefaultChip), "GPIO chip name")
	lines := fs.String("lines", e.string("CARPI_GPIO_LINES", joinLines(gpio.DefaultLines)), "comma-separated GPIO line offsets for sensors 1..4 (-1 disables)")
	fs.BoolVar(&c.NoGPIO, "no-gpio", e.bool("CARPI_NO_GPIO", false), "run without door sensors")
	fs.Float64Var(&c.ThresholdFeet, "threshold-feet", e.float("CARPI_THRESHOLD_FEET", geo.DefaultThresholdFeet), "minimum movement to retain a GPS fix")
	fs.IntVar(&c.Capacity, "capacity", e.int("CARPI_CAPACITY", geo.DefaultCapacity), "position history and offline queue capacity")
	fs.StringVar(&c.HistoryPath, "history-file", e.string("CARPI_HISTORY_FILE", "/var/lib/carpi/positions.json"), "position cache file")
	fs.StringVar(&c.QueuePath, "queue-file", e.string("CARPI_QUEUE_FILE", "/var/lib/carpi/queue.json"), "offline report cache file")
	fs.StringVar(&c.ThermalPath, "thermal", e.string("CARPI_THERMAL_PATH", sensors.DefaultThermalPath), "CPU thermal zone file")
	fs.StringVar(&c.GPSPath, "gps", e.string("CARPI_GPS_PATH", sensors.DefaultGPSPath), "GPS fix file")
	fs.BoolVar(&c.PrintState, "print-state", false, "print current sensor state and exit")

	if e.err != nil {
		return Uplink{}, e.err
	}
	if err := fs.Parse(args); err != nil {
		return Uplink{}, err
	}

	var err error
	if c.Lines, err = parseLines(*lines); err != nil {
		return Uplink{}, err
	}
	if err := c.Validate(); err != nil {
		return Uplink{}, err
	}
	return c, nil
}
