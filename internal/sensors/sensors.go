// Package sensors reads host-level telemetry: CPU temperature from the
// kernel thermal zone and the latest GPS fix written by the GPS reader.
package sensors

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

// Default host paths.
const (
	DefaultThermalPath = "/sys/class/thermal/thermal_zone0/temp"
	DefaultGPSPath     = "/tmp/locGPS"
)

// ErrNoFix is returned when the GPS file exists but holds no usable fix.
var ErrNoFix = errors.New("sensors: no gps fix")

// Thermometer reads the CPU temperature.
type Thermometer interface {
	ReadCelsius() (float64, error)
}

// Locator reads the current GPS fix.
type Locator interface {
	ReadFix() (report.Position, error)
}

// ThermalZone reads a sysfs thermal zone reporting millidegrees Celsius.
type ThermalZone struct {
	Path string
}

// ReadCelsius returns the zone temperature in degrees Celsius.
func (z ThermalZone) ReadCelsius() (float64, error) {
	data, err := os.ReadFile(z.Path)
	if err != nil {
		return 0, fmt.Errorf("read thermal zone: %w", err)
	}
	milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse thermal zone %q: %w", strings.TrimSpace(string(data)), err)
	}
	return milli / 1000, nil
}

// gpsFile is the document the GPS reader writes.
type gpsFile struct {
	Error    any `json:"error"`
	Location *struct {
		Lat report.Coord `json:"lat"`
		Lng report.Coord `json:"lng"`
	} `json:"location"`
	Spd report.Coord `json:"spd"`
}

// GPSFile reads the latest fix from a JSON file of the form
// {"location":{"lat":..,"lng":..},"spd":..,"error":..}.
type GPSFile struct {
	Path string
	Now  func() time.Time
}

// ReadFix returns the current fix. A file reporting an error or lacking a
// location returns ErrNoFix.
func (g GPSFile) ReadFix() (report.Position, error) {
	data, err := os.ReadFile(g.Path)
	if err != nil {
		return report.Position{}, fmt.Errorf("read gps file: %w", err)
	}
	var doc gpsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return report.Position{}, fmt.Errorf("parse gps file: %w", err)
	}
	if hasError(doc.Error) || doc.Location == nil {
		return report.Position{}, ErrNoFix
	}

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return report.Position{
		Lat:      doc.Location.Lat,
		Lng:      doc.Location.Lng,
		SpeedKmh: doc.Spd,
		FixedAt:  now().UnixMilli(),
	}, nil
}

func hasError(v any) bool {
	switch e := v.(type) {
	case nil:
		return false
	case bool:
		return e
	case string:
		return e != ""
	default:
		return true
	}
}
