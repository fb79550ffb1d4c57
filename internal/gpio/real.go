//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealReader reads door sensors from actual hardware using the Linux GPIO
// character device.
type RealReader struct {
	chip    *gpiocdev.Chip
	lines   *gpiocdev.Lines
	slots   []int // index into lines.Values per sensor, or -1
	offsets []int
}

// NewRealReader requests the given line offsets on chip. An offset of
// Disabled leaves that sensor slot unwired.
func NewRealReader(chipName string, offsets []int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer("carpi-uplink"))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}

	slots := make([]int, len(offsets))
	var wired []int
	for i, off := range offsets {
		if off < 0 {
			slots[i] = -1
			continue
		}
		slots[i] = len(wired)
		wired = append(wired, off)
	}

	r := &RealReader{chip: chip, slots: slots, offsets: wired}
	if len(wired) == 0 {
		return r, nil
	}

	// Input with pull-down to match Pi boot defaults; the optocoupler
	// drives the line high while the door contact is closed.
	lines, err := chip.RequestLines(wired, gpiocdev.AsInput, gpiocdev.WithPullDown)
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request lines %v: %w", wired, err)
	}
	r.lines = lines
	return r, nil
}

// Read returns raw levels for every sensor slot.
func (r *RealReader) Read() ([]int, error) {
	out := make([]int, len(r.slots))
	var values []int
	if r.lines != nil {
		values = make([]int, len(r.offsets))
		if err := r.lines.Values(values); err != nil {
			return nil, fmt.Errorf("read lines %v: %w", r.offsets, err)
		}
	}
	for i, slot := range r.slots {
		if slot < 0 {
			out[i] = Disabled
			continue
		}
		out[i] = values[slot]
	}
	return out, nil
}

// Close releases GPIO resources.
// Reconfigures lines to input with pull-down (matching Pi boot defaults)
// before closing so the pins are left in a clean state for reboot.
func (r *RealReader) Close() error {
	var errs []error

	if r.lines != nil {
		if err := r.lines.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure lines: %w", err))
		}
		if err := r.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close lines: %w", err))
		}
		r.lines = nil
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		r.chip = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
