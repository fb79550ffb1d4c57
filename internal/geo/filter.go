// Package geo decides which GPS fixes are worth keeping and holds the
// bounded track of retained fixes.
package geo

import (
	golanggeo "github.com/kellydunn/golang-geo"

	"github.com/sweeney/carpi-telemetry/internal/report"
)

const (
	// EarthRadiusFeet is the sphere radius used for Haversine distances.
	EarthRadiusFeet = 20902232.0

	// DefaultThresholdFeet is the minimum movement for a fix to be retained.
	DefaultThresholdFeet = 100.0
)

// DistanceFeet returns the great-circle distance between two fixes.
// Both fixes must be retainable.
func DistanceFeet(a, b report.Position) float64 {
	pa := golanggeo.NewPoint(a.Lat.Value, a.Lng.Value)
	pb := golanggeo.NewPoint(b.Lat.Value, b.Lng.Value)
	// golang-geo works on a kilometre sphere; rescale the central angle.
	return pa.GreatCircleDistance(pb) / golanggeo.EARTH_RADIUS * EarthRadiusFeet
}

// ShouldRetain reports whether next is far enough from prev to keep.
// A nil prev always retains; a non-numeric fix on either side never does.
func ShouldRetain(prev *report.Position, next report.Position, thresholdFeet float64) bool {
	if !next.Retainable() {
		return false
	}
	if prev == nil {
		return true
	}
	if !prev.Retainable() {
		return false
	}
	return DistanceFeet(*prev, next) >= thresholdFeet
}
