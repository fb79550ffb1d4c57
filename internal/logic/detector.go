package logic

import (
	"log"
	"time"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

// Detector tracks per-sensor door state and turns raw samples into
// debounced transitions.
type Detector struct {
	debounceDuration time.Duration
	doors            []DoorState
	sampled          []bool
	lastOpenedAt     time.Time
	transitions      int
}

// NewDetector creates a detector for n sensors, all initially CLOSED.
func NewDetector(n int, debounceDuration time.Duration) *Detector {
	doors := make([]DoorState, n)
	for i := range doors {
		doors[i].Value = report.DoorClosed
	}
	return &Detector{
		debounceDuration: debounceDuration,
		doors:            doors,
		sampled:          make([]bool, n),
	}
}

// Process takes a new sample and returns the transitions it caused, in
// sensor order. Samples equal to the current state, samples inside a
// sensor's dwell window, and raw levels other than 0/1 are ignored.
func (d *Detector) Process(input Input) []Transition {
	var out []Transition
	for i, level := range input.Levels {
		if i >= len(d.doors) || level < 0 {
			continue
		}
		tr, ok := d.processSensor(i, level, input.Time)
		if ok {
			out = append(out, tr)
		}
	}
	return out
}

func (d *Detector) processSensor(i, level int, now time.Time) (Transition, bool) {
	var value report.DoorValue
	switch level {
	case RawOpen:
		value = report.DoorOpen
	case RawClosed:
		value = report.DoorClosed
	default:
		log.Printf("logic: sensor %d: invalid raw level %d", i+1, level)
		return Transition{}, false
	}

	d.sampled[i] = true
	door := &d.doors[i]
	if value == door.Value {
		return Transition{}, false
	}
	// Inside the dwell window: bounce, drop it.
	if !door.LastChangedAt.IsZero() && now.Sub(door.LastChangedAt) < d.debounceDuration {
		return Transition{}, false
	}

	door.Value = value
	door.LastChangedAt = now
	if value == report.DoorOpen {
		d.lastOpenedAt = now
	}
	d.transitions++

	return Transition{
		SensorID:     i + 1,
		Value:        value,
		At:           now,
		LastOpenedAt: d.lastOpenedAt,
	}, true
}

// Door returns the state of a 1-based sensor id. The second result is
// false until the sensor has delivered at least one valid sample.
func (d *Detector) Door(id int) (DoorState, bool) {
	if id < 1 || id > len(d.doors) || !d.sampled[id-1] {
		return DoorState{}, false
	}
	return d.doors[id-1], true
}

// LastOpenedAt returns when any sensor last transitioned into OPEN.
func (d *Detector) LastOpenedAt() (time.Time, bool) {
	return d.lastOpenedAt, !d.lastOpenedAt.IsZero()
}

// TransitionCount returns the number of accepted transitions since startup.
func (d *Detector) TransitionCount() int {
	return d.transitions
}
