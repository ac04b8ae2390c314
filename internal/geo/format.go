package geo

import (
	"fmt"
	"math"
)

const feetPerMeter = 3.28084

// FormatRadius renders a metric distance as a human-readable imperial
// string: rounded feet below a quarter mile, one-decimal miles at or
// above it. The quarter-mile boundary itself (402.336 m) renders in
// miles. Rounding is half-away-from-zero, so exactly 0.25 mi shows as
// "0.3 mi". Negative inputs are treated as zero.
func FormatRadius(meters float64) string {
	if meters < 0 || math.IsNaN(meters) {
		meters = 0
	}

	miles := meters / metersPerMile
	if miles < 0.25 {
		return fmt.Sprintf("%d ft", int(math.Round(meters*feetPerMeter)))
	}
	return fmt.Sprintf("%.1f mi", math.Round(miles*10)/10)
}
