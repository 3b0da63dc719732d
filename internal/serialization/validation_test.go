package serialization

import (
	"errors"
	"strings"
	"testing"

	"github.com/born-ml/ffm/internal/ffm"
)

func validHeader() Header {
	features := 1 << 3
	wSize := int64(features * 2 * ffm.BlockStride * 4)
	lSize := int64(features * 2 * 4)
	return Header{
		Model: ModelMeta{HashBits: 3, Fields: 2, LatentDim: ffm.LatentDim, AlignedDim: ffm.AlignedDim, Eta: 0.2},
		Tensors: []TensorMeta{
			{Name: TensorWeights, DType: DTypeFloat32, Shape: []int{features, 2, ffm.BlockStride}, Offset: 0, Size: wSize},
			{Name: TensorLinear, DType: DTypeFloat32, Shape: []int{features, 2}, Offset: wSize, Size: lSize},
			{Name: TensorBias, DType: DTypeFloat32, Shape: []int{2}, Offset: wSize + lSize, Size: 8},
		},
	}
}

func dataSizeOf(h Header) int64 {
	last := h.Tensors[len(h.Tensors)-1]
	return last.Offset + last.Size
}

// TestValidateTensorOffsets checks overlap, bounds and sign rules.
func TestValidateTensorOffsets(t *testing.T) {
	tests := []struct {
		name     string
		tensors  []TensorMeta
		dataSize int64
		wantErr  error
	}{
		{
			name: "adjacent regions",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 100, Size: 100},
			},
			dataSize: 200,
		},
		{
			name: "overlap by one byte",
			tensors: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 99, Size: 100},
			},
			dataSize: 200,
			wantErr:  ErrOffsetOverlap,
		},
		{
			name: "unsorted overlap",
			tensors: []TensorMeta{
				{Name: "b", Offset: 50, Size: 100},
				{Name: "a", Offset: 0, Size: 100},
			},
			dataSize: 200,
			wantErr:  ErrOffsetOverlap,
		},
		{
			name:     "beyond data section",
			tensors:  []TensorMeta{{Name: "a", Offset: 100, Size: 200}},
			dataSize: 250,
			wantErr:  ErrOutOfBounds,
		},
		{
			name:     "negative size",
			tensors:  []TensorMeta{{Name: "a", Offset: 0, Size: -1}},
			dataSize: 250,
			wantErr:  ErrNegativeOffset,
		},
		{
			name:     "too many tensors",
			tensors:  make([]TensorMeta, MaxTensorCount+1),
			dataSize: 0,
			wantErr:  ErrTooManyTensors,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTensorOffsets(tt.tensors, tt.dataSize)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got: %v", tt.wantErr, err)
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Errorf("Expected ValidationError, got %T", err)
			}
		})
	}
}

// TestValidateTensorName rejects path elements and accepts plain names.
func TestValidateTensorName(t *testing.T) {
	bad := []string{"", "../weights", "a/b", "a\\b", "bias\x00", strings.Repeat("x", MaxTensorNameLen+1)}
	for _, name := range bad {
		if err := ValidateTensorName(name); !errors.Is(err, ErrInvalidTensorName) {
			t.Errorf("ValidateTensorName(%q) = %v, want ErrInvalidTensorName", name, err)
		}
	}

	for _, name := range []string{TensorWeights, TensorLinear, TensorBias, "weights.v2"} {
		if err := ValidateTensorName(name); err != nil {
			t.Errorf("ValidateTensorName(%q) = %v, want nil", name, err)
		}
	}
}

// TestValidateModelTensors checks the header against the recorded model shape.
func TestValidateModelTensors(t *testing.T) {
	h := validHeader()
	if err := ValidateModelTensors(&h); err != nil {
		t.Fatalf("Expected valid header, got: %v", err)
	}

	missing := validHeader()
	missing.Tensors = missing.Tensors[:2]
	if err := ValidateModelTensors(&missing); !errors.Is(err, ErrMissingTensor) {
		t.Errorf("Expected ErrMissingTensor, got: %v", err)
	}

	wrongFields := validHeader()
	wrongFields.Model.Fields = 3
	if err := ValidateModelTensors(&wrongFields); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for field count, got: %v", err)
	}

	wrongDim := validHeader()
	wrongDim.Model.LatentDim = 8
	if err := ValidateModelTensors(&wrongDim); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for latent dim, got: %v", err)
	}

	wrongSize := validHeader()
	wrongSize.Tensors[2].Size = 4
	if err := ValidateModelTensors(&wrongSize); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for size, got: %v", err)
	}

	wrongType := validHeader()
	wrongType.Tensors[1].DType = "float64"
	if err := ValidateModelTensors(&wrongType); !errors.Is(err, ErrShapeMismatch) {
		t.Errorf("Expected ErrShapeMismatch for dtype, got: %v", err)
	}
}

// TestValidateHeaderLevels verifies which checks each level runs.
func TestValidateHeaderLevels(t *testing.T) {
	h := validHeader()
	if err := ValidateHeader(&h, dataSizeOf(h), ValidationStrict); err != nil {
		t.Fatalf("Expected valid header, got: %v", err)
	}

	// Truncated data section: strict catches it, normal does not look.
	if err := ValidateHeader(&h, dataSizeOf(h)-1, ValidationStrict); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Expected ErrOutOfBounds in strict mode, got: %v", err)
	}
	if err := ValidateHeader(&h, dataSizeOf(h)-1, ValidationNormal); err != nil {
		t.Errorf("Expected no error in normal mode, got: %v", err)
	}

	bad := validHeader()
	bad.Tensors[0].Name = "../weights"
	if err := ValidateHeader(&bad, dataSizeOf(bad), ValidationNormal); !errors.Is(err, ErrInvalidTensorName) {
		t.Errorf("Expected ErrInvalidTensorName, got: %v", err)
	}
	if err := ValidateHeader(&bad, 0, ValidationNone); err != nil {
		t.Errorf("Expected no error with validation disabled, got: %v", err)
	}
}

// TestValidationError_ErrorMessages verifies error message formatting.
func TestValidationError_ErrorMessages(t *testing.T) {
	tests := []struct {
		err  *ValidationError
		want string
	}{
		{
			err:  &ValidationError{Type: "offset_overlap", Tensor: "a", Tensor2: "b", Details: "x"},
			want: `offset_overlap: tensors "a" and "b": x`,
		},
		{
			err:  &ValidationError{Type: "invalid_name", Tensor: "a", Details: "x"},
			want: `invalid_name: tensor "a": x`,
		},
		{
			err:  &ValidationError{Type: "too_many_tensors", Details: "x"},
			want: "too_many_tensors: x",
		},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
