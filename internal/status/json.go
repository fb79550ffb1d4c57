package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/carpi-telemetry/internal/collector"
	"github.com/sweeney/carpi-telemetry/internal/report"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Device        string           `json:"device"`
	LastUpdate    string           `json:"last_update"`
	LastUpdateAgo string           `json:"last_update_ago"`
	DoorOpen      bool             `json:"door_open"`
	Sensors       []SensorJSON     `json:"sensors"`
	LastOpened    string           `json:"last_opened"`
	CPUTempC      *float64         `json:"cpu_temp_c,omitempty"`
	SpeedMPH      string           `json:"speed_mph"`
	Position      *report.Position `json:"position,omitempty"`
	Reports       CountsJSON       `json:"reports"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	StartTime     string           `json:"start_time"`
	Timestamp     string           `json:"timestamp"`
	Config        ConfigJSON       `json:"config"`
}

// SensorJSON is one door sensor slot.
type SensorJSON struct {
	ID   int    `json:"id"`
	Door string `json:"door"`
}

// CountsJSON reports ingestion counters.
type CountsJSON struct {
	Applied    int `json:"applied"`
	Duplicates int `json:"duplicates"`
}

// ConfigJSON is the JSON representation of collector config.
type ConfigJSON struct {
	HTTPAddr      string `json:"http_addr"`
	MQTTBroker    string `json:"mqtt_broker,omitempty"`
	MQTTStatus    string `json:"mqtt_status,omitempty"`
	NotifySensors bool   `json:"notify_sensors"`
}

// HistoryJSON is the position history view.
type HistoryJSON struct {
	Count     int               `json:"count"`
	Current   *report.Position  `json:"current"`
	Positions []report.Position `json:"positions"`
}

// FormatJSON returns the JSON status for the web endpoint. The position is
// included only when showPos is set.
func FormatJSON(snap collector.Snapshot, cfg Config, showPos bool) []byte {
	device := string(snap.Status)
	if device == "" {
		device = "UNKNOWN"
	}

	sensors := make([]SensorJSON, len(snap.Sensors))
	for i, d := range snap.Sensors {
		sensors[i] = SensorJSON{ID: i + 1, Door: d.String()}
	}

	inner := StatusInner{
		Device:        device,
		LastUpdate:    Absolute(snap.Timestamp, never),
		LastUpdateAgo: Relative(snap.Timestamp, snap.Now, never),
		DoorOpen:      snap.DoorOpen(),
		Sensors:       sensors,
		LastOpened:    Absolute(snap.LastOpenedAt, never),
		CPUTempC:      snap.CPUTempC,
		SpeedMPH:      SpeedMPH(snap.Position),
		Reports:       CountsJSON{Applied: snap.Applied, Duplicates: snap.Duplicates},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Config: ConfigJSON{
			HTTPAddr:      cfg.HTTPAddr,
			MQTTBroker:    cfg.MQTTBroker,
			MQTTStatus:    cfg.MQTTState(),
			NotifySensors: cfg.NotifySensors,
		},
	}
	if showPos {
		inner.Position = snap.Position
	}

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatHistoryJSON returns the position history view, oldest first.
func FormatHistoryJSON(positions []report.Position, current *report.Position) []byte {
	if positions == nil {
		positions = []report.Position{}
	}
	data, _ := json.MarshalIndent(HistoryJSON{
		Count:     len(positions),
		Current:   current,
		Positions: positions,
	}, "", "  ")
	return data
}
