// Package status renders the collector's read-only views of the aggregated
// device state. Nothing here mutates collector state.
package status

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

// NotAvailable is shown for values the device has not reported.
const NotAvailable = "N/A"

const (
	mphPerKmh = 0.621371
	never     = "never"
)

// Config contains collector configuration for display.
type Config struct {
	HTTPAddr      string
	MQTTBroker    string // empty = disabled
	MQTTConnected bool   // sampled per request
	NotifySensors bool
}

// MQTTState describes the broker connection, or "" when MQTT is disabled.
func (c Config) MQTTState() string {
	switch {
	case c.MQTTBroker == "":
		return ""
	case c.MQTTConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// SpeedMPH converts the speed of p to miles per hour with one decimal,
// or NotAvailable if p or its speed is missing.
func SpeedMPH(p *report.Position) string {
	if p == nil || !p.SpeedKmh.Valid {
		return NotAvailable
	}
	return fmt.Sprintf("%.1f", p.SpeedKmh.Value*mphPerKmh)
}

// Temperature formats a CPU temperature, or NotAvailable.
func Temperature(c *float64) string {
	if c == nil {
		return NotAvailable
	}
	return fmt.Sprintf("%.1f °C", *c)
}

// Relative renders m relative to now ("3 minutes ago"), or fallback when m
// is unset.
func Relative(m report.Millis, now time.Time, fallback string) string {
	t, ok := m.Time()
	if !ok {
		return fallback
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Absolute renders m as RFC 3339 UTC, or fallback when m is unset.
func Absolute(m report.Millis, fallback string) string {
	t, ok := m.Time()
	if !ok {
		return fallback
	}
	return t.UTC().Format(time.RFC3339)
}
