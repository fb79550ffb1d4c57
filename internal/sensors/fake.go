package sensors

import "github.com/sweeney/carpi-telemetry/internal/report"

// FakeThermometer returns a fixed temperature or error.
type FakeThermometer struct {
	Celsius float64
	Err     error
	Reads   int
}

// ReadCelsius returns the configured value.
func (f *FakeThermometer) ReadCelsius() (float64, error) {
	f.Reads++
	if f.Err != nil {
		return 0, f.Err
	}
	return f.Celsius, nil
}

// FakeLocator returns scripted fixes; the last one repeats.
type FakeLocator struct {
	Fixes []report.Position
	Err   error
	index int
}

// ReadFix returns the next scripted fix.
func (f *FakeLocator) ReadFix() (report.Position, error) {
	if f.Err != nil {
		return report.Position{}, f.Err
	}
	if len(f.Fixes) == 0 {
		return report.Position{}, ErrNoFix
	}
	p := f.Fixes[f.index]
	if f.index < len(f.Fixes)-1 {
		f.index++
	}
	return p, nil
}
