// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ffm provides a field-aware factorization machine for online
// click-through-rate style learning.
//
// # Overview
//
// A Model scores one example at a time. An example is a list of Features,
// each a hashed (field, token) index with a real value:
//
//	score = bias + Σ value·w_lin/len(features) + Σ_{b<a} <W[a, field_b], W[b, field_a]>·value_a·value_b/norm
//
// Update applies one AdaGrad step given the loss gradient with respect to
// the score. Dropout masks select which interaction pairs take part; use
// FullMask for inference.
//
// # Basic Usage
//
//	model, err := ffm.New(ffm.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	hasher := ffm.NewHasher(model)
//	ex, err := ffm.ParseExample("1 0:site=a 1:ad=42 2:hour=13", hasher, ffm.DataOptions{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mask := ffm.FullMask(model.PairCount(ex.Features))
//	score := model.Predict(ex.Features, ex.Norm, mask)
//	model.Update(ex.Features, ex.Norm, ffm.Kappa(score, ex.Label, 1), mask)
//
// # Training and Checkpoints
//
//	trainer, err := ffm.NewTrainer(model, ffm.TrainConfig{Keep: 0.8}, logger)
//	report, err := trainer.Run(ctx, trainFile, validFile)
//
//	err = ffm.Save("model.ffm", model, ffm.WriteOptions{})
//	model, header, err := ffm.Load("model.ffm", logger)
//
// # Concurrency
//
// Predict is read-only and may run concurrently with other Predict calls.
// Update takes no locks; concurrent updates race on shared weights and are
// only used when a trainer is configured for Hogwild training.
package ffm
