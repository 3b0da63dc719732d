package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/born-ml/ffm/internal/ffm"
)

// Version is written into every header this package produces.
const Version = "0.3.0"

// WriteOptions carries the optional parts of a checkpoint header.
type WriteOptions struct {
	Metadata map[string]string // Free-form metadata
	Training *TrainingMeta     // Training summary
}

// Writer writes models in .ffm format.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates a new .ffm file writer.
func NewWriter(path string) (*Writer, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &Writer{file: file}, nil
}

// WriteModel writes m to the file.
func (w *Writer) WriteModel(m *ffm.Model, opts WriteOptions) error {
	if w.closed {
		return fmt.Errorf("writer is closed")
	}

	bw := bufio.NewWriterSize(w.file, 1<<20)
	if err := WriteTo(bw, m, opts); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}
	return w.file.Sync()
}

// Close closes the writer and the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// Save writes m to path, replacing any existing file.
func Save(path string, m *ffm.Model, opts WriteOptions) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteModel(m, opts); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// WriteTo writes m in .ffm format to an io.Writer.
//
// Layout:
//
//	0x00-0x03: magic "FFMK"
//	0x04-0x07: version
//	0x08-0x0B: flags
//	0x0C-0x0F: reserved
//	0x10-0x17: JSON header size
//	0x18-0x1F: data size
//	0x20-0x3F: SHA-256 of the data section
//	JSON header, zero padding to 64 bytes, tensor data
//
// The payload is hashed in a first pass and then streamed, so memory use is
// bounded regardless of model size.
func WriteTo(writer io.Writer, m *ffm.Model, opts WriteOptions) error {
	tensors := modelTensors(m)
	header := Header{
		FormatVersion: FormatVersion,
		FFMVersion:    Version,
		CreatedAt:     time.Now().UTC(),
		Model:         modelMeta(m),
		Tensors:       make([]TensorMeta, 0, len(tensors)),
		Metadata:      opts.Metadata,
		Training:      opts.Training,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var dataSize int64
	for _, t := range tensors {
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   t.name,
			DType:  DTypeFloat32,
			Shape:  t.shape,
			Offset: dataSize,
			Size:   t.size(),
		})
		dataSize += t.size()
	}

	buf := make([]byte, chunkScalars*4)
	checksum, err := checksumTensors(tensors, buf)
	if err != nil {
		return fmt.Errorf("failed to checksum tensors: %w", err)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	flags := uint32(0)
	if header.Model.Restricted {
		flags |= FlagRestricted
	}
	if header.Training != nil {
		flags |= FlagHasTraining
	}
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}

	fixedHeader := make([]byte, FixedHeaderSize)
	copy(fixedHeader[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixedHeader[4:8], FormatVersion)
	binary.LittleEndian.PutUint32(fixedHeader[8:12], flags)
	binary.LittleEndian.PutUint64(fixedHeader[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixedHeader[24:32], uint64(dataSize)) //nolint:gosec // G115: sizes are non-negative
	copy(fixedHeader[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := writer.Write(fixedHeader); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := writer.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	headerEnd := int64(FixedHeaderSize + len(headerJSON))
	if padding := alignedOffset(headerEnd) - headerEnd; padding > 0 {
		if _, err := writer.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	for _, t := range tensors {
		if err := writeFloat32s(writer, t.data, buf); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", t.name, err)
		}
	}

	return nil
}
