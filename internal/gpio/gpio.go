// Package gpio provides door sensor input reading with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Reader reads raw door sensor levels.
type Reader interface {
	// Read returns one raw level per configured sensor, indexed by
	// sensor id - 1: 1 = closed (contact made), 0 = open. Sensors with no
	// line assigned report -1.
	Read() ([]int, error)

	// Close releases GPIO resources.
	Close() error
}

// DefaultChip is the GPIO character device the sensors hang off.
const DefaultChip = "gpiochip0"

// Default line offsets for sensors 1-4 (pins 11, 13, 15, 16 on the header).
var DefaultLines = []int{17, 27, 22, 23}

// Disabled marks a sensor slot with no line assigned.
const Disabled = -1
