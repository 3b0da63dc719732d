// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package optim

import (
	"github.com/born-ml/ffm/internal/optim"
)

// AdaGrad (Adaptive Gradient)

// AdaGrad represents the AdaGrad update rule.
type AdaGrad = optim.AdaGrad

// AdaGradConfig contains configuration for AdaGrad.
type AdaGradConfig = optim.AdaGradConfig

// NewAdaGrad creates a new AdaGrad update rule.
//
// Example:
//
//	opt := optim.NewAdaGrad(optim.AdaGradConfig{
//	    LR:     0.2,
//	    Lambda: 2e-5,
//	})
//	opt.Step(&w, &acc, kappa*value/n)
func NewAdaGrad(config AdaGradConfig) *AdaGrad {
	return optim.NewAdaGrad(config)
}
