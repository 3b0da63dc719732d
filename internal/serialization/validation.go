package serialization

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"

	"github.com/born-ml/ffm/internal/ffm"
)

// Validation limits for resource protection.
const (
	MaxHeaderSize    = 16 * 1024 * 1024 // 16MB - maximum JSON header size
	MaxTensorCount   = 16               // A checkpoint holds a handful of tensors
	MaxTensorNameLen = 256              // Maximum tensor name length
)

// ValidationLevel controls the strictness of validation.
type ValidationLevel int

const (
	// ValidationStrict checks names, offsets and model shapes (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and model shapes only.
	ValidationNormal
	// ValidationNone skips validation. Use only with trusted input.
	ValidationNone
)

// ValidateTensorOffsets checks for overlapping tensor offsets and out-of-bounds access.
func ValidateTensorOffsets(tensors []TensorMeta, dataSize int64) error {
	if len(tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(tensors), MaxTensorCount),
			Err:     ErrTooManyTensors,
		}
	}

	sorted := slices.Clone(tensors)
	slices.SortFunc(sorted, func(a, b TensorMeta) int {
		return cmp.Compare(a.Offset, b.Offset)
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
				Err:     ErrNegativeOffset,
			}
		}

		if t.Offset+t.Size > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > data_size %d", t.Offset, t.Size, dataSize),
				Err:     ErrOutOfBounds,
			}
		}

		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Type:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
					Err: ErrOffsetOverlap,
				}
			}
		}
	}

	return nil
}

// ValidateTensorName rejects names that are empty, oversized or contain
// separators, parent references or null bytes.
func ValidateTensorName(name string) error {
	if name == "" || len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: fmt.Sprintf("length %d outside [1, %d]", len(name), MaxTensorNameLen),
			Err:     ErrInvalidTensorName,
		}
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, "/\\\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains a path element or null byte",
			Err:     ErrInvalidTensorName,
		}
	}
	return nil
}

// ValidateModelTensors checks that the header describes exactly the tensors
// a model with the recorded parameters owns.
func ValidateModelTensors(h *Header) error {
	if h.Model.LatentDim != ffm.LatentDim || h.Model.AlignedDim != ffm.AlignedDim {
		return &ValidationError{
			Type: "shape_mismatch",
			Details: fmt.Sprintf("latent dim %d/%d, this build uses %d/%d",
				h.Model.LatentDim, h.Model.AlignedDim, ffm.LatentDim, ffm.AlignedDim),
			Err: ErrShapeMismatch,
		}
	}
	if h.Model.HashBits > 31 || h.Model.Fields < 1 {
		return &ValidationError{
			Type:    "shape_mismatch",
			Details: fmt.Sprintf("hash bits %d, fields %d", h.Model.HashBits, h.Model.Fields),
			Err:     ErrShapeMismatch,
		}
	}

	features := 1 << h.Model.HashBits
	want := map[string][]int{
		TensorWeights: {features, h.Model.Fields, ffm.BlockStride},
		TensorLinear:  {features, 2},
		TensorBias:    {2},
	}

	byName := lo.KeyBy(h.Tensors, func(t TensorMeta) string { return t.Name })
	for name, shape := range want {
		t, ok := byName[name]
		if !ok {
			return &ValidationError{Type: "missing_tensor", Tensor: name, Details: "not in header", Err: ErrMissingTensor}
		}
		if t.DType != DTypeFloat32 || !slices.Equal(t.Shape, shape) {
			return &ValidationError{
				Type:    "shape_mismatch",
				Tensor:  name,
				Details: fmt.Sprintf("got %s%v, want %s%v", t.DType, t.Shape, DTypeFloat32, shape),
				Err:     ErrShapeMismatch,
			}
		}
		n, err := shapeElements(t.Shape)
		if err != nil || n*4 != t.Size {
			return &ValidationError{
				Type:    "shape_mismatch",
				Tensor:  name,
				Details: fmt.Sprintf("size %d does not match shape %v", t.Size, t.Shape),
				Err:     ErrShapeMismatch,
			}
		}
	}

	return nil
}

// ValidateHeader performs header validation at the given level.
func ValidateHeader(h *Header, dataSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
			Err:     ErrTooManyTensors,
		}
	}

	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
	}

	if err := ValidateModelTensors(h); err != nil {
		return err
	}

	if level == ValidationStrict {
		if err := ValidateTensorOffsets(h.Tensors, dataSize); err != nil {
			return err
		}
	}

	return nil
}
