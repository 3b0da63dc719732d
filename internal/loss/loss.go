// Package loss implements the logistic loss used to train the FFM kernel.
//
// Labels are 0 or 1. The score is the raw logit returned by Predict.
package loss

import "math"

// Sigmoid returns 1/(1+exp(-x)) without overflowing for large |x|.
func Sigmoid(x float32) float32 {
	if x >= 0 {
		return float32(1 / (1 + math.Exp(-float64(x))))
	}
	e := math.Exp(float64(x))
	return float32(e / (1 + e))
}

// LogLoss returns the binary cross-entropy of score against label y.
func LogLoss(score, y float32) float64 {
	// log(1+exp(-s)) for y=1, log(1+exp(s)) for y=0
	s := float64(score)
	if y < 0.5 {
		s = -s
	}
	return softplus(-s)
}

// Kappa returns the derivative of weight·LogLoss with respect to the score,
// the value Update expects.
func Kappa(score, y, weight float32) float32 {
	return weight * (Sigmoid(score) - y)
}

func softplus(x float64) float64 {
	if x > 0 {
		return x + math.Log1p(math.Exp(-x))
	}
	return math.Log1p(math.Exp(x))
}
