// Package notify delivers door alerts from the collector to external
// sinks (a chat webhook, an MQTT broker) without blocking ingestion.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

// Alert is a door transition accepted by the collector.
type Alert struct {
	SensorID   int
	Door       report.DoorValue
	At         time.Time // device time of the transition
	ReceivedAt time.Time // collector time of ingestion
}

// Sink is a notification destination.
type Sink interface {
	// Notify delivers one alert. Errors are logged by the caller and the
	// alert is not retried.
	Notify(ctx context.Context, a Alert) error
}

// FormatMessage renders the human text for an alert, relative to now.
//
// Example:
//
//	Sensor ID `2` is now `OPEN`
//	3 seconds ago (Mon, 02 Jan 2006 15:04:05 UTC) [1136214245000]
func FormatMessage(a Alert, now time.Time) string {
	return fmt.Sprintf("Sensor ID `%d` is now `%s`\n%s (%s) [%d]",
		a.SensorID,
		a.Door,
		humanize.RelTime(a.At, now, "ago", "from now"),
		a.At.UTC().Format(time.RFC1123),
		a.At.UnixMilli(),
	)
}
