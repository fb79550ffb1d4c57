package gpio

import "errors"

// FakeReader replays scripted sensor levels in place of a GPIO chip.
type FakeReader struct {
	// Samples are returned one per Read; the final sample then repeats.
	Samples [][]int

	// ReadError makes every Read fail while set.
	ReadError error

	// Closed reports whether Close has been called.
	Closed bool

	next int
}

// NewFakeReader returns a FakeReader that replays samples in order.
func NewFakeReader(samples ...[]int) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns a copy of the current sample and advances, stopping at the
// last one.
func (f *FakeReader) Read() ([]int, error) {
	switch {
	case f.ReadError != nil:
		return nil, f.ReadError
	case len(f.Samples) == 0:
		return nil, errors.New("gpio: fake reader has no samples")
	}

	levels := append([]int(nil), f.Samples[f.next]...)
	if f.next+1 < len(f.Samples) {
		f.next++
	}
	return levels, nil
}

// Close records the call.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// Reset rewinds to the first sample and reopens the reader.
func (f *FakeReader) Reset() {
	f.next = 0
	f.Closed = false
}
