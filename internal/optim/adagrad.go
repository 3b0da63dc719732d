package optim

import "math"

// AdaGrad implements adaptive per-coordinate gradient descent with L2 decay.
//
// Update rule for a weight w with accumulator acc (initialized to 1):
//
//	g   = lambda * w + signal
//	acc = acc + g²
//	w   = w - lr * g / sqrt(acc)
//
// The accumulator's initial value plays the role of epsilon, so the first
// step never divides by zero.
type AdaGrad struct {
	lr     float32
	lambda float32
}

// AdaGradConfig holds configuration for AdaGrad.
type AdaGradConfig struct {
	LR     float32 // Learning rate (default: 0.2)
	Lambda float32 // L2 regularization (default: 0, no decay)
}

// NewAdaGrad creates a new AdaGrad rule.
//
// Default hyperparameters:
//   - LR: 0.2
//   - Lambda: 0
func NewAdaGrad(config AdaGradConfig) *AdaGrad {
	if config.LR == 0 {
		config.LR = 0.2
	}

	return &AdaGrad{
		lr:     config.LR,
		lambda: config.Lambda,
	}
}

// Step updates a single weight and its accumulator.
//
// signal is the loss gradient with respect to w, before regularization.
func (a *AdaGrad) Step(w, acc *float32, signal float32) {
	g := a.lambda*(*w) + signal
	wg := *acc + g*g

	*w -= a.lr * g / sqrt32(wg)
	*acc = wg
}

// StepBias updates the global bias.
//
// The bias accumulator grows by kappa itself rather than kappa², and no L2
// term is applied. Models trained with this rule depend on that exact
// behavior, so it is kept as is.
func (a *AdaGrad) StepBias(w, acc *float32, kappa float32) {
	*acc += kappa
	*w -= a.lr * kappa / sqrt32(*acc)
}

// StepPair updates two interaction blocks that multiply each other.
//
// Each block holds stride weights followed by stride accumulators; only the
// first dim lanes are touched. For every lane d < dim:
//
//	ga = lambda*wa[d] + scale*wb[d]
//	gb = lambda*wb[d] + scale*wa[d]
//
// Both gradients of a lane are formed before either block is written, so
// each side sees the other's weight from before the step. StepPair does not
// allocate.
func (a *AdaGrad) StepPair(wa, wb []float32, dim, stride int, scale float32) {
	wa, wb = wa[:stride+dim], wb[:stride+dim]

	for d := range dim {
		xa, xb := wa[d], wb[d]

		ga := a.lambda*xa + scale*xb
		gb := a.lambda*xb + scale*xa

		acca := wa[stride+d] + ga*ga
		accb := wb[stride+d] + gb*gb

		wa[d] = xa - a.lr*ga/sqrt32(acca)
		wa[stride+d] = acca
		wb[d] = xb - a.lr*gb/sqrt32(accb)
		wb[stride+d] = accb
	}
}

// GetLR returns the learning rate.
func (a *AdaGrad) GetLR() float32 {
	return a.lr
}

// GetLambda returns the L2 regularization coefficient.
func (a *AdaGrad) GetLambda() float32 {
	return a.lambda
}

func sqrt32(x float32) float32 {
	return float32(math.Sqrt(float64(x)))
}
