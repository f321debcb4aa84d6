package domain

import "math"

// Mean Earth radius in meters, per the haversine convention.
const earthRadiusMeters = 6371000.0

// Immutable geographic coordinates (latitude, longitude).
type Point struct {
	Lat float64
	Lng float64
}

// IsZero reports whether the point is the (0,0) null-island default.
// GPS units report (0,0) before acquiring a fix, so a zero point is
// treated as "no position" rather than a real location.
func (p Point) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// DistanceMeters returns the great-circle distance between two points
// using the haversine formula. Pure and deterministic; symmetric in its
// arguments and zero for identical points.
func DistanceMeters(a, b Point) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)

	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLng*sinLng
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
