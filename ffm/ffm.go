// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package ffm

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/born-ml/ffm/internal/dataset"
	"github.com/born-ml/ffm/internal/dropout"
	"github.com/born-ml/ffm/internal/ffm"
	"github.com/born-ml/ffm/internal/hashing"
	"github.com/born-ml/ffm/internal/loss"
	"github.com/born-ml/ffm/internal/serialization"
	"github.com/born-ml/ffm/internal/train"
)

// Model shape constants.
const (
	LatentDim   = ffm.LatentDim
	AlignedDim  = ffm.AlignedDim
	BlockStride = ffm.BlockStride
)

// Model

// Model owns the weights of a field-aware factorization machine.
type Model = ffm.Model

// Config holds model construction parameters.
type Config = ffm.Config

// Feature is one hashed feature occurrence within an example.
type Feature = ffm.Feature

// Layout maps combined indices to weight tensor offsets.
type Layout = ffm.Layout

// Errors returned by New.
var (
	ErrInvalidConfig = ffm.ErrInvalidConfig
	ErrAllocation    = ffm.ErrAllocation
)

// New creates a model with seeded random latent weights.
//
// Example:
//
//	cfg := ffm.DefaultConfig()
//	cfg.HashBits = 18
//	cfg.Restricted = true
//	model, err := ffm.New(cfg)
func New(cfg Config) (*Model, error) {
	return ffm.New(cfg)
}

// DefaultConfig returns the production model configuration.
func DefaultConfig() Config {
	return ffm.DefaultConfig()
}

// MaskWords returns the number of 64-bit words holding n pair bits.
func MaskWords(n int) int {
	return ffm.MaskWords(n)
}

// Masks

// MaskGenerator draws Bernoulli dropout masks.
type MaskGenerator = dropout.Generator

// NewMaskGenerator creates a generator keeping each pair with probability keep.
func NewMaskGenerator(keep float64, seed uint64) (*MaskGenerator, error) {
	return dropout.New(keep, seed)
}

// FullMask returns a mask enabling the first n pairs.
func FullMask(n int) []uint64 {
	return dropout.Full(n)
}

// Examples

// Hasher maps (field, token) pairs to feature indices.
type Hasher = hashing.Hasher

// NewHasher creates a hasher matching the layout of m.
func NewHasher(m *Model) *Hasher {
	return hashing.ForModel(m)
}

// Example is one labeled, hashed example.
type Example = dataset.Example

// DataOptions controls example parsing.
type DataOptions = dataset.Options

// ExampleReader yields examples from libffm-style text.
type ExampleReader = dataset.Reader

// NewExampleReader creates a reader over r.
func NewExampleReader(r io.Reader, h *Hasher, opts DataOptions) *ExampleReader {
	return dataset.NewReader(r, h, opts)
}

// ParseExample parses one line of libffm-style text.
func ParseExample(line string, h *Hasher, opts DataOptions) (Example, error) {
	return dataset.Parse(line, h, opts)
}

// Loss

// Sigmoid maps a score to a probability.
func Sigmoid(score float32) float32 {
	return loss.Sigmoid(score)
}

// Kappa returns the logistic loss gradient with respect to the score.
func Kappa(score, label, weight float32) float32 {
	return loss.Kappa(score, label, weight)
}

// Training

// Trainer runs single-pass online training.
type Trainer = train.Trainer

// TrainConfig holds trainer settings.
type TrainConfig = train.Config

// Report summarizes a training pass.
type Report = train.Report

// NewTrainer creates a trainer for m. Logger may be nil.
func NewTrainer(m *Model, cfg TrainConfig, logger *zap.Logger) (*Trainer, error) {
	return train.New(m, cfg, logger)
}

// Train makes one pass over r with default trainer settings.
func Train(ctx context.Context, m *Model, r io.Reader) (Report, error) {
	t, err := train.New(m, train.DefaultConfig(), nil)
	if err != nil {
		return Report{}, err
	}
	return t.Run(ctx, r, nil)
}

// Checkpoints

// Header describes a saved model.
type Header = serialization.Header

// WriteOptions carries optional checkpoint metadata.
type WriteOptions = serialization.WriteOptions

// Save writes m to path in .ffm format.
func Save(path string, m *Model, opts WriteOptions) error {
	return serialization.Save(path, m, opts)
}

// Load restores a model saved with Save. Logger may be nil.
func Load(path string, logger *zap.Logger) (*Model, Header, error) {
	return serialization.Load(path, logger)
}

// Inspect returns the header of a saved model without loading its weights.
func Inspect(path string) (Header, error) {
	return serialization.Inspect(path)
}
