// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the update rules used to train field-aware
// factorization machines.
//
// # Overview
//
// This package contains:
//   - AdaGrad: per-coordinate adaptive learning rate with L2 regularization
//   - Scalar steps for linear weights and the global bias
//   - A step for a pair of interaction blocks that read each other
//
// The rules work in place on caller-owned float32 storage. An AdaGrad value
// holds only hyperparameters and may be shared between goroutines.
//
// # Basic Usage
//
//	import "github.com/born-ml/ffm/optim"
//
//	func main() {
//	    opt := optim.NewAdaGrad(optim.AdaGradConfig{
//	        LR:     0.2,
//	        Lambda: 2e-5,
//	    })
//
//	    // A weight and its accumulator, accumulator starting at 1.
//	    w, acc := float32(0), float32(1)
//	    opt.Step(&w, &acc, 0.5)
//
//	    // Two interaction blocks that see each other. Each block holds
//	    // stride weights followed by stride accumulators.
//	    a := make([]float32, 32)
//	    b := make([]float32, 32)
//	    opt.StepPair(a, b, 14, 16, 0.5)
//	}
//
// # Update Rules
//
// For a weight w with accumulator acc and loss gradient s:
//
//	g   = lambda*w + s
//	acc = acc + g*g
//	w   = w - lr*g/sqrt(acc)
//
// StepPair reads both blocks before writing either, so each side sees the
// other's weights from before the step.
//
// StepBias adds the raw gradient, not its square, to the accumulator. Models
// trained with this rule depend on it, so it is kept as is.
package optim
