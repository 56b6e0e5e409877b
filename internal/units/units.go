// Package units holds the pure conversions from vendor-native units to the
// canonical SI values used everywhere downstream. Classifiers must route
// every physical quantity through here before it leaves the package.
package units

import "math"

const (
	mpsPerKmh     = 1.0 / 3.6
	metersPerFoot = 0.3048
)

// KmhToMps converts km/h (OwnTracks vel) to m/s.
func KmhToMps(kmh float64) float64 { return kmh * mpsPerKmh }

// FeetToMeters converts imperial altitude reports to meters.
func FeetToMeters(ft float64) float64 { return ft * metersPerFoot }

// DegE7ToDeg scales MAVLink degE7 integer coordinates to decimal degrees.
func DegE7ToDeg(v int64) float64 { return float64(v) / 1e7 }

// MillimetersToMeters scales MAVLink millimeter altitudes to meters.
func MillimetersToMeters(mm int64) float64 { return float64(mm) / 1000.0 }

// CentidegToDeg scales MAVLink centi-degree headings to degrees.
func CentidegToDeg(cdeg int64) float64 { return float64(cdeg) / 100.0 }

// SpeedFromVector derives horizontal ground speed from an x/y velocity
// vector, both components in m/s.
func SpeedFromVector(x, y float64) float64 { return math.Hypot(x, y) }

// BatteryPct normalizes vendor battery scales to 0-100 percent. Values in
// [0,1] are treated as fractions, values already in [1,100] pass through,
// anything else is clamped. Negative input means "not reported" upstream
// and must not reach this function.
func BatteryPct(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v <= 1 {
		return v * 100
	}
	if v > 100 {
		return 100
	}
	return v
}
