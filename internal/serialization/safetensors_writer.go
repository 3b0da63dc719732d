package serialization

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/born-ml/ffm/internal/ffm"
)

// SafeTensorHeader represents a tensor in the SafeTensors header.
type SafeTensorHeader struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// ExportSafeTensors writes the state of m to path in SafeTensors format, for
// inspection with tools outside this module. AdaGrad accumulators are
// exported alongside the weights.
func ExportSafeTensors(path string, m *ffm.Model, metadata map[string]string) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model export
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	bw := bufio.NewWriterSize(file, 1<<20)
	if err := WriteSafeTensors(bw, m, metadata); err != nil {
		_ = file.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to flush: %w", err)
	}
	return file.Close()
}

// WriteSafeTensors writes the state of m in SafeTensors format.
//
// Format:
// [8 bytes: header_size (uint64 LE)]
// [header_size bytes: JSON header]
// [tensor data: raw bytes]
//
// Tensors are written in alphabetical order by name.
func WriteSafeTensors(w io.Writer, m *ffm.Model, metadata map[string]string) error {
	tensors := modelTensors(m)
	slices.SortFunc(tensors, func(a, b modelTensor) int {
		return strings.Compare(a.name, b.name)
	})

	header := make(map[string]any, len(tensors)+1)
	meta := map[string]string{"format": "ffm"}
	for k, v := range metadata {
		meta[k] = v
	}
	header["__metadata__"] = meta

	var offset int64
	for _, t := range tensors {
		shape := make([]int64, len(t.shape))
		for i, d := range t.shape {
			shape[i] = int64(d)
		}
		header[t.name] = SafeTensorHeader{
			DType:       "F32",
			Shape:       shape,
			DataOffsets: [2]int64{offset, offset + t.size()},
		}
		offset += t.size()
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	buf := make([]byte, chunkScalars*4)
	for _, t := range tensors {
		if err := writeFloat32s(w, t.data, buf); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", t.name, err)
		}
	}

	return nil
}
