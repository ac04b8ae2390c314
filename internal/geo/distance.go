// Package geo provides great-circle distance math and display formatting
// for request radii. All functions are pure.
package geo

import (
	"math"

	"github.com/errandly/backend/internal/domain"
)

// earthRadiusMeters is the mean Earth radius. Distances are computed in
// meters and converted to other units only at the boundary.
const earthRadiusMeters = 6371000.0

const metersPerMile = 1609.344

// DistanceMeters returns the great-circle distance between a and b using
// the haversine formula. The result is non-negative and symmetric:
// DistanceMeters(a, b) == DistanceMeters(b, a).
func DistanceMeters(a, b domain.Coordinate) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}
	return haversine(a.Latitude, a.Longitude, b.Latitude, b.Longitude), nil
}

// DistanceMiles is DistanceMeters converted to statute miles.
func DistanceMiles(a, b domain.Coordinate) (float64, error) {
	meters, err := DistanceMeters(a, b)
	if err != nil {
		return 0, err
	}
	return meters / metersPerMile, nil
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(v float64) float64 { return v * math.Pi / 180 }

	phi1 := toRad(lat1)
	phi2 := toRad(lat2)
	dPhi := toRad(lat2 - lat1)
	dLambda := toRad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}
