package config

import (
	"fmt"

	"github.com/sweeney/carpi-telemetry/internal/collector"
	"github.com/sweeney/carpi-telemetry/internal/geo"
	"github.com/sweeney/carpi-telemetry/internal/notify"
)

// Collector configures the collector server.
type Collector struct {
	Token    string
	HTTPAddr string

	HistoryCapacity int
	ThresholdFeet   float64
	SeenIDs         int

	NotifySensors   bool
	WebhookURL      string
	MQTTBroker      string // empty = disabled
	MQTTClientID    string
	NotifyPerMinute int
}

// Validate checks that the collector can start.
func (c Collector) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("%w: auth token (-token or CARPI_TOKEN)", ErrMissing)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: http address", ErrMissing)
	}
	if c.NotifySensors && c.WebhookURL == "" && c.MQTTBroker == "" {
		return fmt.Errorf("%w: -notify-sensors needs -webhook or -mqtt-broker", ErrMissing)
	}
	return nil
}

// LoadCollector parses args over environment defaults and validates the result.
func LoadCollector(args []string, getenv func(string) string) (Collector, error) {
	e := &env{getenv: getenv}
	var c Collector

	fs := newFlagSet("carpi-collector")
	fs.StringVar(&c.Token, "token", e.string("CARPI_TOKEN", ""), "shared auth token")
	fs.StringVar(&c.HTTPAddr, "http", e.string("CARPI_HTTP_ADDR", ":3000"), "HTTP listen address")
	fs.IntVar(&c.HistoryCapacity, "capacity", e.int("CARPI_CAPACITY", geo.DefaultCapacity), "position history capacity")
	fs.Float64Var(&c.ThresholdFeet, "threshold-feet", e.float("CARPI_THRESHOLD_FEET", geo.DefaultThresholdFeet), "minimum movement to retain a GPS fix")
	fs.IntVar(&c.SeenIDs, "seen-ids", e.int("CARPI_SEEN_IDS", collector.DefaultSeenIDs), "report ids remembered for replay dedupe")
	fs.BoolVar(&c.NotifySensors, "notify-sensors", e.bool("CARPI_NOTIFY_SENSORS", false), "send door alerts to the configured sinks")
	fs.StringVar(&c.WebhookURL, "webhook", e.string("CARPI_WEBHOOK_URL", ""), "Discord-compatible webhook URL")
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", e.string("CARPI_MQTT_BROKER", ""), "MQTT broker for alerts (empty to disable)")
	fs.StringVar(&c.MQTTClientID, "mqtt-client-id", e.string("CARPI_MQTT_CLIENT_ID", "carpi-collector"), "MQTT client id")
	fs.IntVar(&c.NotifyPerMinute, "notify-rate", e.int("CARPI_NOTIFY_RATE", notify.DefaultPerMinute), "maximum alerts per minute (0 = unlimited)")

	if e.err != nil {
		return Collector{}, e.err
	}
	if err := fs.Parse(args); err != nil {
		return Collector{}, err
	}
	if err := c.Validate(); err != nil {
		return Collector{}, err
	}
	return c, nil
}
