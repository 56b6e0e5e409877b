// Package geo provides the small amount of geodesy the correlation window
// and distance enrichment need.
package geo

import "math"

const earthRadiusM = 6371e3

// HaversineM returns the great-circle ground distance in meters between two
// coordinate pairs in decimal degrees.
func HaversineM(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dphi := (lat2 - lat1) * math.Pi / 180
	dlambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dphi/2)*math.Sin(dphi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dlambda/2)*math.Sin(dlambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// Distance3DM returns the slant distance in meters, combining ground
// distance with altitude difference.
func Distance3DM(lat1, lon1, alt1, lat2, lon2, alt2 float64) float64 {
	ground := HaversineM(lat1, lon1, lat2, lon2)
	dalt := alt2 - alt1
	return math.Sqrt(ground*ground + dalt*dalt)
}
