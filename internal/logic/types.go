// Package logic contains the door-sensor edge detector.
// This package has NO I/O dependencies (no GPIO, HTTP, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"time"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

// DefaultDebounce is the minimum dwell time between accepted transitions.
const DefaultDebounce = 100 * time.Millisecond

// Raw GPIO levels as delivered by the sampling layer.
const (
	RawOpen   = 0
	RawClosed = 1
)

// DoorState is the debounced state of a single sensor.
type DoorState struct {
	Value         report.DoorValue
	LastChangedAt time.Time // zero until the first transition
}

// Input is one raw sample of every sensor, indexed by sensor id - 1.
// A negative entry means the sensor is not wired and is skipped.
type Input struct {
	Levels []int
	Time   time.Time
}

// Transition is emitted when a sensor changes debounced state.
type Transition struct {
	SensorID     int // 1-based
	Value        report.DoorValue
	At           time.Time
	LastOpenedAt time.Time // zero if no sensor has opened yet
}

// Message returns the human description of the transition.
func (t Transition) Message() string {
	if t.Value == report.DoorOpen {
		return "Door opened"
	}
	return "Door closed"
}
