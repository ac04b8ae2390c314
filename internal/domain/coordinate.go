package domain

import (
	"fmt"
	"math"
)

// Coordinate is a point on Earth in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate rejects coordinates outside the standard ranges
// (|latitude| > 90, |longitude| > 180) as well as NaN and Inf values.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) ||
		math.IsInf(c.Latitude, 0) || math.IsInf(c.Longitude, 0) {
		return fmt.Errorf("%w: coordinate must be a finite number", ErrValidation)
	}
	if c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrValidation)
	}
	if c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrValidation)
	}
	return nil
}
