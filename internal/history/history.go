// Package history keeps the device's bounded position history and mirrors
// it to a cache file after every mutation so fixes survive restarts.
package history

import (
	"errors"
	"fmt"
	"io/fs"
	"log"

	"github.com/sweeney/carpi-telemetry/internal/filestore"
	"github.com/sweeney/carpi-telemetry/internal/geo"
	"github.com/sweeney/carpi-telemetry/internal/report"
)

// History is the device-side PositionHistory.
// Not safe for concurrent use; the uplink loop owns it.
type History struct {
	track *geo.Track
	file  *filestore.File
}

// New creates a history backed by the cache file at path.
// Call Load before use to pick up fixes from a previous run.
func New(path string, capacity int, thresholdFeet float64) *History {
	return &History{
		track: geo.NewTrack(capacity, thresholdFeet),
		file:  filestore.New(path),
	}
}

// Load restores the buffer from disk. A missing or unreadable cache
// leaves the history empty and is never fatal.
func (h *History) Load() {
	var ps []report.Position
	err := h.file.Load(&ps)
	switch {
	case err == nil:
		h.track.Restore(ps)
		log.Printf("history: restored %d positions from %s", h.track.Len(), h.file.Path())
	case errors.Is(err, fs.ErrNotExist):
		h.track.Restore(nil)
	default:
		log.Printf("history: %v, starting empty", err)
		h.track.Restore(nil)
	}
}

// Record offers p to the geo filter and persists the buffer if it was retained.
// Invalid fixes are logged and skipped.
func (h *History) Record(p report.Position) (bool, error) {
	if !p.Retainable() {
		log.Printf("history: skipping fix without coordinates")
		return false, nil
	}
	if !h.track.Offer(p) {
		return false, nil
	}
	if err := h.file.Save(h.track.Positions()); err != nil {
		return true, fmt.Errorf("persist history: %w", err)
	}
	return true, nil
}

// DrainForSend returns the buffered fixes, oldest first, without clearing them.
func (h *History) DrainForSend() []report.Position {
	return h.track.Positions()
}

// ClearAfterAck empties the buffer and deletes the cache file.
// Calling it on an empty history is a no-op.
func (h *History) ClearAfterAck() error {
	h.track.Reset()
	if err := h.file.Remove(); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Len returns the number of buffered fixes.
func (h *History) Len() int {
	return h.track.Len()
}
