package ffm

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/ajroetker/go-highway/hwy"
	"go.uber.org/zap"

	"github.com/born-ml/ffm/internal/align"
	"github.com/born-ml/ffm/internal/optim"
)

// Model owns the interaction weight tensor, the linear table and the global
// bias of a field-aware factorization machine.
//
// Predict only reads state; Update mutates it in place. Model provides no
// locking: concurrent Update calls that share a hashed feature id race.
type Model struct {
	cfg    Config
	layout Layout
	opt    *optim.AdaGrad
	logger *zap.Logger

	minAField uint32
	maxBField uint32

	weightBuf *align.Buffer
	linearBuf *align.Buffer
	weights   []float32 // [features][fields][BlockStride]
	linear    []float32 // [features]{w, acc}
	biasW     float32
	biasG     float32
	closed    bool
}

// New creates a model with freshly initialized weights.
//
// Latent weights are drawn uniformly from [0, 1/sqrt(LatentDim)) using a
// generator seeded by cfg.Seed; padding lanes are zero; every AdaGrad
// accumulator starts at 1; linear weights and the bias start at 0.
//
// Allocation failure is returned wrapped in ErrAllocation and leaves nothing
// behind.
func New(cfg Config) (*Model, error) {
	m, err := Allocate(cfg)
	if err != nil {
		return nil, err
	}
	m.initWeights()
	return m, nil
}

// Allocate creates a model whose buffers are allocated but hold zeros.
// It is meant for restoring saved state through State and SetBias.
func Allocate(cfg Config) (*Model, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	layout := Layout{HashBits: cfg.HashBits, Fields: cfg.Fields}

	weightBuf, err := align.NewFloat32(layout.WeightCount())
	if err != nil {
		return nil, fmt.Errorf("%w: interaction weights: %w", ErrAllocation, err)
	}
	linearBuf, err := align.NewFloat32(layout.LinearCount())
	if err != nil {
		_ = weightBuf.Close()
		return nil, fmt.Errorf("%w: linear weights: %w", ErrAllocation, err)
	}

	minA, maxB := cfg.fieldBounds()
	m := &Model{
		cfg:       cfg,
		layout:    layout,
		opt:       optim.NewAdaGrad(optim.AdaGradConfig{LR: cfg.Eta, Lambda: cfg.Lambda}),
		logger:    cfg.Logger,
		minAField: minA,
		maxBField: maxB,
		weightBuf: weightBuf,
		linearBuf: linearBuf,
		weights:   weightBuf.Float32(),
		linear:    linearBuf.Float32(),
		biasW:     0,
		biasG:     1,
	}

	m.logger.Info("allocated ffm model",
		zap.Uint("hash_bits", cfg.HashBits),
		zap.Int("fields", cfg.Fields),
		zap.Int("latent_dim", LatentDim),
		zap.Int("weight_bytes", 4*len(m.weights)),
		zap.Int("linear_bytes", 4*len(m.linear)),
		zap.Int("alignment", align.Alignment()),
		zap.String("simd", hwy.CurrentName()),
		zap.Bool("restricted", cfg.Restricted))

	return m, nil
}

// initWeights fills the tensors with their seeded initial values.
func (m *Model) initWeights() {
	rnd := rand.New(rand.NewPCG(uint64(m.cfg.Seed), uint64(m.cfg.Seed))) //nolint:gosec // weight init is not security-critical
	bound := float32(1.0 / math.Sqrt(LatentDim))

	for off := 0; off < len(m.weights); off += BlockStride {
		block := m.weights[off : off+BlockStride]
		for d := range LatentDim {
			block[d] = rnd.Float32() * bound
		}
		for d := LatentDim; d < AlignedDim; d++ {
			block[d] = 0
		}
		for d := AlignedDim; d < BlockStride; d++ {
			block[d] = 1
		}
	}

	for i := 0; i < len(m.linear); i += 2 {
		m.linear[i] = 0
		m.linear[i+1] = 1
	}

	m.biasW = 0
	m.biasG = 1
}

// Close releases the weight buffers. The model must not be used afterwards.
func (m *Model) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.weights, m.linear = nil, nil

	errW := m.weightBuf.Close()
	errL := m.linearBuf.Close()
	if errW != nil {
		return errW
	}
	return errL
}

// Config returns the configuration the model was built with, defaults applied.
func (m *Model) Config() Config {
	return m.cfg
}

// Layout returns the addressing scheme of the weight tensor.
func (m *Model) Layout() Layout {
	return m.layout
}

// FieldBounds returns (min_a_field, max_b_field) of the restriction policy.
func (m *Model) FieldBounds() (minA, maxB uint32) {
	return m.minAField, m.maxBField
}

// Bias returns the global bias weight and its accumulator.
func (m *Model) Bias() (w, acc float32) {
	return m.biasW, m.biasG
}

// SetBias overwrites the global bias weight and its accumulator.
func (m *Model) SetBias(w, acc float32) {
	m.biasW, m.biasG = w, acc
}

// Linear returns the linear weight of a hashed feature id and its accumulator.
func (m *Model) Linear(feature uint32) (w, acc float32) {
	return m.linear[2*feature], m.linear[2*feature+1]
}

// Block returns the interaction block used by feature when paired with a
// member of field: AlignedDim weights followed by AlignedDim accumulators.
// The slice aliases model memory.
func (m *Model) Block(feature, field uint32) []float32 {
	off := m.layout.BlockOffset(feature, field)
	return m.weights[off : off+BlockStride : off+BlockStride]
}

// State exposes the raw tensors for checkpointing. Both slices alias model
// memory; writes through them change the model.
func (m *Model) State() (weights, linear []float32) {
	return m.weights, m.linear
}
