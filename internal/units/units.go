// Package units provides shared unit conversions for sensor ingestion.
// Estimator-internal quantities are SI: metres, metres per second, radians.
package units

import "math"

// Conversion factors.
const (
	// KnotsToMPSFactor converts nautical speed (NMEA reports speed over
	// ground in knots) to metres per second.
	KnotsToMPSFactor = 0.514444

	// EarthRadiusMeters is the mean earth radius used for local-plane
	// projection of geodetic coordinates.
	EarthRadiusMeters = 6371000.0
)

// KnotsToMPS converts knots to metres per second.
func KnotsToMPS(knots float64) float64 {
	return knots * KnotsToMPSFactor
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 {
	return deg * math.Pi / 180
}

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 {
	return rad * 180 / math.Pi
}
