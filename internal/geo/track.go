package geo

import (
	"log"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

// DefaultCapacity is the number of fixes a Track holds before evicting.
const DefaultCapacity = 1000

// Track is a fixed-capacity FIFO of retained fixes gated by ShouldRetain.
// The anchor (last retained fix) survives Reset so that clearing the
// buffer after a successful upload does not re-admit a stationary fix.
// Not safe for concurrent use; the caller synchronizes.
type Track struct {
	buf       []report.Position
	capacity  int
	head      int // next write position
	count     int
	threshold float64
	anchor    *report.Position
	overflow  bool // true if any fix was evicted since last reset
}

// NewTrack creates a track. Non-positive arguments fall back to defaults.
func NewTrack(capacity int, thresholdFeet float64) *Track {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if thresholdFeet <= 0 {
		thresholdFeet = DefaultThresholdFeet
	}
	return &Track{
		buf:       make([]report.Position, capacity),
		capacity:  capacity,
		threshold: thresholdFeet,
	}
}

// Offer appends p if it passes the filter against the anchor.
// Returns whether p was retained.
func (t *Track) Offer(p report.Position) bool {
	if !ShouldRetain(t.anchor, p, t.threshold) {
		return false
	}
	t.push(p)
	return true
}

func (t *Track) push(p report.Position) {
	anchor := p
	t.anchor = &anchor

	if t.count == t.capacity {
		if !t.overflow {
			log.Printf("geo: track full (%d fixes), dropping oldest", t.capacity)
			t.overflow = true
		}
		// head already points at the oldest entry
		t.buf[t.head] = p
		t.head = (t.head + 1) % t.capacity
		return
	}
	t.buf[t.head] = p
	t.head = (t.head + 1) % t.capacity
	t.count++
}

// Restore replaces the contents with ps (oldest first) without filtering,
// keeping only the newest capacity entries.
func (t *Track) Restore(ps []report.Position) {
	t.Reset()
	t.anchor = nil
	if len(ps) > t.capacity {
		ps = ps[len(ps)-t.capacity:]
	}
	for _, p := range ps {
		t.push(p)
	}
	t.overflow = false
}

// Positions returns a copy of the retained fixes, oldest first.
func (t *Track) Positions() []report.Position {
	if t.count == 0 {
		return nil
	}
	out := make([]report.Position, t.count)
	start := (t.head - t.count + t.capacity) % t.capacity
	for i := 0; i < t.count; i++ {
		out[i] = t.buf[(start+i)%t.capacity]
	}
	return out
}

// last returns the anchor fix, if any.
func (t *Track) last() (report.Position, bool) {
	if t.anchor == nil {
		return report.Position{}, false
	}
	return *t.anchor, true
}

// Len returns the number of retained fixes.
func (t *Track) Len() int {
	return t.count
}

// Reset empties the buffer, keeping the anchor.
func (t *Track) Reset() {
	t.head = 0
	t.count = 0
	t.overflow = false
}
