package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ajroetker/go-highway/hwy/contrib/vec"
	"go.uber.org/zap"

	"github.com/born-ml/ffm/internal/ffm"
)

// ReaderOptions configures the behavior of Reader.
type ReaderOptions struct {
	SkipChecksumValidation bool            // Skip checksum validation (faster but less safe)
	ValidationLevel        ValidationLevel // Validation strictness level
}

// Reader provides memory-mapped access to .ffm files.
// Only the header is parsed when the file is opened; tensor data is read
// through the OS page cache on demand.
type Reader struct {
	file       *os.File
	data       []byte // mapped region (read-only)
	size       int64
	header     Header
	version    uint32
	flags      uint32
	dataOffset int64
	dataSize   int64
	checksum   [32]byte
	closed     bool
}

// Open opens a .ffm file with strict validation and checksum verification.
//
// Always call Close when done to unmap the file.
func Open(path string) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// OpenWithOptions opens a .ffm file with custom options.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if stat.Size() < FixedHeaderSize {
		_ = file.Close()
		return nil, fmt.Errorf("file too small: %d bytes (minimum %d bytes required)", stat.Size(), FixedHeaderSize)
	}

	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("mmap failed: %w", err)
	}

	r := &Reader{
		file: file,
		data: data,
		size: stat.Size(),
	}

	if err := r.parseHeader(opts.ValidationLevel); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to parse header: %w", err)
	}

	if !opts.SkipChecksumValidation {
		if err := r.VerifyChecksum(); err != nil {
			_ = r.Close()
			return nil, err
		}
	}

	return r, nil
}

// parseHeader reads and validates the fixed header and the JSON header.
func (r *Reader) parseHeader(level ValidationLevel) error {
	if string(r.data[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}

	r.version = binary.LittleEndian.Uint32(r.data[4:8])
	if r.version != FormatVersion {
		return fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, r.version, FormatVersion)
	}

	r.flags = binary.LittleEndian.Uint32(r.data[8:12])

	headerSize := binary.LittleEndian.Uint64(r.data[16:24])
	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	dataSize := binary.LittleEndian.Uint64(r.data[24:32])
	if dataSize > uint64(r.size) {
		return fmt.Errorf("%w: data size %d > file size %d", ErrOutOfBounds, dataSize, r.size)
	}
	r.dataSize = int64(dataSize)

	copy(r.checksum[:], r.data[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerEnd := int64(FixedHeaderSize) + int64(headerSize)
	if headerEnd > r.size {
		return fmt.Errorf("header extends beyond file: header_end=%d, file_size=%d", headerEnd, r.size)
	}

	if err := json.Unmarshal(r.data[FixedHeaderSize:headerEnd], &r.header); err != nil {
		return fmt.Errorf("failed to parse header JSON: %w", err)
	}

	r.dataOffset = alignedOffset(headerEnd)
	if r.dataOffset+r.dataSize > r.size {
		return fmt.Errorf("%w: data section [%d, %d) beyond file size %d",
			ErrOutOfBounds, r.dataOffset, r.dataOffset+r.dataSize, r.size)
	}

	if err := ValidateHeader(&r.header, r.dataSize, level); err != nil {
		return fmt.Errorf("header validation failed: %w", err)
	}

	return nil
}

// VerifyChecksum hashes the data section and compares it with the stored checksum.
func (r *Reader) VerifyChecksum() error {
	if r.closed {
		return ErrClosed
	}
	section := r.data[r.dataOffset : r.dataOffset+r.dataSize]
	computed, err := ComputeChecksumReader(bytes.NewReader(section))
	if err != nil {
		return fmt.Errorf("failed to hash data section: %w", err)
	}
	return ValidateChecksum(computed, r.checksum)
}

// Close unmaps and closes the file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var err error
	if r.data != nil {
		err = munmapFile(r.data)
		r.data = nil
	}

	if closeErr := r.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	return err
}

// Header returns the file header.
func (r *Reader) Header() Header {
	return r.header
}

// Version returns the format version.
func (r *Reader) Version() uint32 {
	return r.version
}

// Flags returns the flags bitfield.
func (r *Reader) Flags() uint32 {
	return r.flags
}

// Checksum returns the stored SHA-256 checksum.
func (r *Reader) Checksum() [32]byte {
	return r.checksum
}

// TensorNames returns a list of all tensor names in the file.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, t := range r.header.Tensors {
		names[i] = t.Name
	}
	return names
}

// TensorInfo returns metadata about a specific tensor.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			return &r.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrMissingTensor, name)
}

// TensorData returns a zero-copy slice to tensor data.
// The returned slice is read-only and valid only while the reader is open.
func (r *Reader) TensorData(name string) ([]byte, error) {
	if r.closed {
		return nil, ErrClosed
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	start := r.dataOffset + meta.Offset
	end := start + meta.Size
	if meta.Offset < 0 || meta.Size < 0 || end > r.dataOffset+r.dataSize {
		return nil, fmt.Errorf("%w: tensor %q: offset %d + size %d > data_size %d",
			ErrOutOfBounds, name, meta.Offset, meta.Size, r.dataSize)
	}

	return r.data[start:end], nil
}

// Restore builds a model from the file. Logger may be nil.
func (r *Reader) Restore(logger *zap.Logger) (*ffm.Model, error) {
	if r.closed {
		return nil, ErrClosed
	}
	if err := ValidateModelTensors(&r.header); err != nil {
		return nil, err
	}

	cfg := r.header.Model.Config()
	cfg.Logger = logger

	m, err := ffm.Allocate(cfg)
	if err != nil {
		return nil, err
	}

	weights, linear := m.State()
	var bias [2]float32
	targets := map[string][]float32{
		TensorWeights: weights,
		TensorLinear:  linear,
		TensorBias:    bias[:],
	}
	for name, dst := range targets {
		src, err := r.TensorData(name)
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		vec.DecodeFloat32s(dst, src)
	}
	m.SetBias(bias[0], bias[1])

	return m, nil
}

// Load opens path, verifies it and restores the model it holds.
func Load(path string, logger *zap.Logger) (*ffm.Model, Header, error) {
	r, err := Open(path)
	if err != nil {
		return nil, Header{}, err
	}
	defer func() { _ = r.Close() }()

	m, err := r.Restore(logger)
	if err != nil {
		return nil, Header{}, err
	}
	return m, r.Header(), nil
}

// Inspect returns the header of path without reading tensor data.
func Inspect(path string) (Header, error) {
	r, err := OpenWithOptions(path, ReaderOptions{
		SkipChecksumValidation: true,
		ValidationLevel:        ValidationStrict,
	})
	if err != nil {
		return Header{}, err
	}
	defer func() { _ = r.Close() }()
	return r.Header(), nil
}
