// Package report defines the telemetry wire model shared by the uplink
// daemon and the collector. Optional fields are explicit present/absent
// types so that zero values (door open, 0 °C) are never confused with
// missing data.
package report

import (
	"time"

	"github.com/google/uuid"
)

// Collector endpoints. Request bodies are always a JSON array of Report.
const (
	PathHeartbeat      = "/api/heartbeat"
	PathSensorActivate = "/api/sensorActivate"
)

// Kind identifies what produced a report.
type Kind string

const (
	KindHeartbeat   Kind = "heartbeat"
	KindSensorAlert Kind = "sensor-alert"
	KindShutdown    Kind = "shutdown"
)

// Status is the device liveness status carried by heartbeat and shutdown reports.
type Status string

const (
	StatusAlive        Status = "ALIVE"
	StatusShuttingDown Status = "SHUTTING_DOWN"
)

// Report is one outbound telemetry event.
type Report struct {
	ID           string     `json:"id,omitempty"`
	Kind         Kind       `json:"kind"`
	Timestamp    int64      `json:"timestamp"` // epoch millis, device clock
	AuthToken    string     `json:"authToken,omitempty"`
	Status       Status     `json:"status,omitempty"`
	SensorID     SensorID   `json:"sensorId,omitempty"`
	Door         Door       `json:"doorValue"`
	LastOpenedAt Millis     `json:"lastOpenedAt"`
	CPUTempC     *float64   `json:"cpuTempC,omitempty"`
	Positions    []Position `json:"positions,omitempty"`
	Message      string     `json:"msg,omitempty"`
}

// New returns a report of the given kind stamped with a fresh id and t.
func New(kind Kind, t time.Time) Report {
	return Report{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: t.UnixMilli(),
	}
}

// Path returns the collector endpoint a report is sent to.
func (r Report) Path() string {
	if r.Kind == KindSensorAlert {
		return PathSensorActivate
	}
	return PathHeartbeat
}

// WithoutSecret returns a copy of r with the auth token removed.
// The positions slice is copied so the result can be persisted independently.
func (r Report) WithoutSecret() Report {
	r.AuthToken = ""
	if r.Positions != nil {
		r.Positions = append([]Position(nil), r.Positions...)
	}
	return r
}

// WithToken returns a copy of r carrying token.
func (r Report) WithToken(token string) Report {
	r.AuthToken = token
	return r
}

// Time returns the report timestamp as a time.Time.
func (r Report) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// DoorValue is the logical state of a door sensor.
type DoorValue int

const (
	DoorOpen   DoorValue = 0
	DoorClosed DoorValue = 1
)

func (v DoorValue) String() string {
	if v == DoorOpen {
		return "OPEN"
	}
	return "CLOSED"
}

// Door is an optional door reading. The zero value is unknown.
type Door struct {
	Value DoorValue
	Known bool
}

// KnownDoor returns a known door reading.
func KnownDoor(v DoorValue) Door {
	return Door{Value: v, Known: true}
}

// IsOpen reports whether the reading is known and open.
func (d Door) IsOpen() bool {
	return d.Known && d.Value == DoorOpen
}

func (d Door) String() string {
	if !d.Known {
		return "UNKNOWN"
	}
	return d.Value.String()
}

// Millis is an optional epoch-millisecond timestamp. The zero value is "never".
type Millis struct {
	Value int64
	Valid bool
}

// At returns a valid Millis for t.
func At(t time.Time) Millis {
	return Millis{Value: t.UnixMilli(), Valid: true}
}

// Time returns the timestamp and whether it is set.
func (m Millis) Time() (time.Time, bool) {
	if !m.Valid {
		return time.Time{}, false
	}
	return time.UnixMilli(m.Value), true
}

// SensorID is the 1-based door sensor index.
type SensorID int

// Position is a single GPS fix.
type Position struct {
	Lat      Coord `json:"lat"`
	Lng      Coord `json:"lng"`
	SpeedKmh Coord `json:"speedKmh"`
	FixedAt  int64 `json:"fixedAt,omitempty"`
}

// Retainable reports whether the fix has numeric coordinates.
func (p Position) Retainable() bool {
	return p.Lat.Valid && p.Lng.Valid
}

// Coord is an optional float. The zero value is "unavailable".
type Coord struct {
	Value float64
	Valid bool
}

// Some returns an available Coord.
func Some(v float64) Coord {
	return Coord{Value: v, Valid: true}
}

// Fix is a convenience constructor for a position with coordinates and speed.
func Fix(lat, lng, speedKmh float64) Position {
	return Position{Lat: Some(lat), Lng: Some(lng), SpeedKmh: Some(speedKmh)}
}
