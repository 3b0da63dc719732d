package serialization

import (
	"fmt"
	"io"
	"time"

	"github.com/ajroetker/go-highway/hwy/contrib/vec"

	"github.com/born-ml/ffm/internal/ffm"
)

// Format constants.
const (
	MagicBytes      = "FFMK"
	FormatVersion   = 1    // v1: fixed header with SHA-256 checksum
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in fixed header
)

// DTypeFloat32 is the only payload type a checkpoint carries.
const DTypeFloat32 = "float32"

// Tensor names stored in a checkpoint.
const (
	TensorWeights = "weights" // [features, fields, block stride]
	TensorLinear  = "linear"  // [features, 2]
	TensorBias    = "bias"    // [2]
)

// Flags for the .ffm format.
const (
	FlagRestricted  uint32 = 1 << 0 // bit 0: field restriction enabled
	FlagHasTraining uint32 = 1 << 1 // bit 1: training summary included
	FlagHasMetadata uint32 = 1 << 2 // bit 2: custom metadata included
)

// Header represents the JSON header in a .ffm file.
type Header struct {
	FormatVersion int               `json:"format_version"`     // Version of the .ffm format
	FFMVersion    string            `json:"ffm_version"`        // Version of the library that wrote the file
	CreatedAt     time.Time         `json:"created_at"`         // When the file was created
	Model         ModelMeta         `json:"model"`              // Construction parameters
	Tensors       []TensorMeta      `json:"tensors"`            // Tensor metadata
	Metadata      map[string]string `json:"metadata"`           // Custom metadata
	Training      *TrainingMeta     `json:"training,omitempty"` // Training summary (optional)
}

// ModelMeta records the parameters needed to rebuild a model.
type ModelMeta struct {
	HashBits   uint    `json:"hash_bits"`
	Fields     int     `json:"fields"`
	LatentDim  int     `json:"latent_dim"`
	AlignedDim int     `json:"aligned_dim"`
	Seed       int64   `json:"seed"`
	Restricted bool    `json:"restricted"`
	Eta        float32 `json:"eta"`
	Lambda     float32 `json:"lambda"`
}

// TrainingMeta summarizes the pass that produced a checkpoint.
type TrainingMeta struct {
	Examples int64   `json:"examples"`           // Examples consumed
	LogLoss  float64 `json:"log_loss"`           // Progressive training log loss
	AUC      float64 `json:"auc,omitempty"`      // Validation AUC, if a validation set was scored
	Validate int64   `json:"validate,omitempty"` // Validation examples scored
}

// TensorMeta describes a tensor in the .ffm file.
type TensorMeta struct {
	Name   string `json:"name"`   // Tensor name
	DType  string `json:"dtype"`  // Data type, always "float32"
	Shape  []int  `json:"shape"`  // Tensor shape
	Offset int64  `json:"offset"` // Offset in the data section (bytes from start of tensor data)
	Size   int64  `json:"size"`   // Size in bytes
}

// Config converts the recorded parameters back into a model configuration.
func (m ModelMeta) Config() ffm.Config {
	return ffm.Config{
		HashBits:   m.HashBits,
		Fields:     m.Fields,
		Seed:       m.Seed,
		Restricted: m.Restricted,
		Eta:        m.Eta,
		Lambda:     m.Lambda,
	}
}

func modelMeta(m *ffm.Model) ModelMeta {
	cfg := m.Config()
	return ModelMeta{
		HashBits:   cfg.HashBits,
		Fields:     cfg.Fields,
		LatentDim:  ffm.LatentDim,
		AlignedDim: ffm.AlignedDim,
		Seed:       cfg.Seed,
		Restricted: cfg.Restricted,
		Eta:        cfg.Eta,
		Lambda:     cfg.Lambda,
	}
}

// modelTensor is one named float32 array of model state.
type modelTensor struct {
	name  string
	shape []int
	data  []float32
}

func (t modelTensor) size() int64 {
	return int64(len(t.data)) * 4
}

// modelTensors lists the state of m in file order. The slices alias model memory.
func modelTensors(m *ffm.Model) []modelTensor {
	weights, linear := m.State()
	biasW, biasG := m.Bias()
	features := m.Layout().Features()

	return []modelTensor{
		{name: TensorWeights, shape: []int{features, m.Layout().Fields, ffm.BlockStride}, data: weights},
		{name: TensorLinear, shape: []int{features, 2}, data: linear},
		{name: TensorBias, shape: []int{2}, data: []float32{biasW, biasG}},
	}
}

// chunkScalars bounds the scratch buffer used to encode tensors.
const chunkScalars = 1 << 16

// writeFloat32s encodes data as little-endian float32 in bounded chunks.
func writeFloat32s(w io.Writer, data []float32, buf []byte) error {
	for len(data) > 0 {
		n := min(len(data), len(buf)/4)
		vec.EncodeFloat32s(buf[:n*4], data[:n])
		if _, err := w.Write(buf[:n*4]); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// alignedOffset rounds pos up to the next HeaderAlignment boundary.
func alignedOffset(pos int64) int64 {
	return (pos + HeaderAlignment - 1) / HeaderAlignment * HeaderAlignment
}

func shapeElements(shape []int) (int64, error) {
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension %d", d)
		}
		n *= int64(d)
	}
	return n, nil
}
