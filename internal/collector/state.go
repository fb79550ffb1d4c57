// Package collector folds batched, possibly replayed telemetry reports from
// a single device into one latest-state view plus a deduplicated position
// history. It is the server-side counterpart of internal/uplink.
package collector

import (
	"time"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

// NumSensors is the number of door sensor slots the collector tracks.
const NumSensors = 4

// Snapshot is a point-in-time view of the collector state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Status       report.Status
	Timestamp    report.Millis // device time of the last heartbeat or shutdown
	LastOpenedAt report.Millis
	CPUTempC     *float64
	Sensors      [NumSensors]report.Door
	Position     *report.Position // most recent numeric fix, retained or not
	HistoryLen   int
	Applied      int // reports applied since start
	Duplicates   int // replayed reports skipped since start
	StartTime    time.Time
	Now          time.Time
}

// DoorOpen reports whether any sensor is known to be open.
func (s Snapshot) DoorOpen() bool {
	for _, d := range s.Sensors {
		if d.IsOpen() {
			return true
		}
	}
	return false
}

// Uptime returns the duration since the collector started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Age returns how long ago the device last reported, and false if it never has.
func (s Snapshot) Age() (time.Duration, bool) {
	t, ok := s.Timestamp.Time()
	if !ok {
		return 0, false
	}
	return s.Now.Sub(t), true
}
