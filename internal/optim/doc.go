// Package optim implements the per-coordinate update rules used to train
// field-aware factorization machines.
//
// This package provides:
//   - AdaGrad: adaptive learning rate per coordinate with L2 regularization
//   - Scalar steps for linear weights and the global bias
//   - A step for a pair of interaction blocks that read each other
//
// The rules operate in place on caller-owned float32 storage; the optimizer
// holds only hyperparameters and is safe to share between goroutines.
//
// Example usage:
//
//	opt := optim.NewAdaGrad(optim.AdaGradConfig{LR: 0.2, Lambda: 2e-5})
//
//	// Linear weight with its accumulator
//	opt.Step(&w, &acc, kappa*value/n)
//
//	// Two interaction blocks that see each other
//	opt.StepPair(blockA, blockB, 14, 16, kappa*va*vb/norm)
package optim
