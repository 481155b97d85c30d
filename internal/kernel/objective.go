package kernel

import "math"

// LogLoss returns a single row's contribution to the logistic loss,
// log(1 + 1/d_i), given its dual variable d_i = exp(y_i * x_i^T w)
// (spec §4.7 worker progress report).
func LogLoss(d float64) float64 {
	return math.Log1p(1 / d)
}
