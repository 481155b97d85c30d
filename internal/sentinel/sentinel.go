// Package sentinel centralizes the NaN-as-inactive-coordinate wire
// contract so no other package spreads "v != v" checks around.
package sentinel

import "math"

// Inactive reports whether v is the in-band sentinel for "coordinate
// frozen" (wire NaN). It is the single chokepoint callers use instead
// of testing v != v directly.
func Inactive(v float64) bool {
	return math.IsNaN(v)
}

// Mark returns the in-band sentinel value written for a coordinate that
// the KKT filter has just removed from the active set.
func Mark() float64 {
	return math.NaN()
}
