package agents

import "math"

// Squash bounds x to (-1, 1) with tanh, giving diminishing returns near the
// extremes. NaN squashes to 0.
func Squash(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Tanh(x)
}

// Clamp limits x to [lo, hi]. NaN clamps to lo.
func Clamp(x, lo, hi float64) float64 {
	if math.IsNaN(x) || x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamp01 limits x to [0, 1].
func Clamp01(x float64) float64 {
	return Clamp(x, 0, 1)
}

// Sigmoid is the logistic function, mapping any real to (0, 1).
func Sigmoid(x float64) float64 {
	if math.IsNaN(x) {
		return 0.5
	}
	return 1 / (1 + math.Exp(-x))
}
