package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/ffm/internal/ffm"
)

func trainedModel(t *testing.T) *ffm.Model {
	t.Helper()
	m, err := ffm.New(ffm.Config{HashBits: 4, Fields: 3, Seed: 7, Eta: 0.1, Lambda: 0.001, Restricted: false})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	l := m.Layout()
	features := []ffm.Feature{
		{Index: l.Encode(0, 1), Value: 1},
		{Index: l.Encode(1, 2), Value: 0.5},
		{Index: l.Encode(2, 3), Value: 2},
	}
	mask := []uint64{^uint64(0)}
	for i := range 5 {
		m.Update(features, 1, float32(i)*0.1-0.2, mask)
	}
	return m
}

func saveTemp(t *testing.T, m *ffm.Model, opts WriteOptions) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.ffm")
	require.NoError(t, Save(path, m, opts))
	return path
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m := trainedModel(t)
	path := saveTemp(t, m, WriteOptions{
		Metadata: map[string]string{"dataset": "clicks"},
		Training: &TrainingMeta{Examples: 5, LogLoss: 0.6},
	})

	loaded, header, err := Load(path, nil)
	require.NoError(t, err)
	defer loaded.Close()

	wantW, wantL := m.State()
	gotW, gotL := loaded.State()
	assert.Empty(t, cmp.Diff(wantW, gotW))
	assert.Empty(t, cmp.Diff(wantL, gotL))

	bw, bg := m.Bias()
	lw, lg := loaded.Bias()
	assert.Equal(t, bw, lw)
	assert.Equal(t, bg, lg)

	assert.Equal(t, m.Config().HashBits, loaded.Config().HashBits)
	assert.Equal(t, m.Config().Fields, loaded.Config().Fields)
	assert.Equal(t, m.Config().Eta, loaded.Config().Eta)
	assert.Equal(t, m.Config().Lambda, loaded.Config().Lambda)

	assert.Equal(t, FormatVersion, header.FormatVersion)
	assert.Equal(t, Version, header.FFMVersion)
	assert.Equal(t, "clicks", header.Metadata["dataset"])
	require.NotNil(t, header.Training)
	assert.Equal(t, int64(5), header.Training.Examples)

	// Same input, same score.
	l := m.Layout()
	features := []ffm.Feature{{Index: l.Encode(0, 1), Value: 1}, {Index: l.Encode(2, 3), Value: 2}}
	assert.Equal(t, m.Predict(features, 1, []uint64{1}), loaded.Predict(features, 1, []uint64{1}))
}

func TestWriteToLayout(t *testing.T) {
	m := trainedModel(t)

	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, m, WriteOptions{Training: &TrainingMeta{Examples: 1}}))
	data := buf.Bytes()

	assert.Equal(t, MagicBytes, string(data[0:4]))
	assert.Equal(t, uint32(FormatVersion), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, FlagHasTraining, binary.LittleEndian.Uint32(data[8:12]))

	headerSize := int64(binary.LittleEndian.Uint64(data[16:24]))
	dataSize := int64(binary.LittleEndian.Uint64(data[24:32]))

	var header Header
	require.NoError(t, json.Unmarshal(data[FixedHeaderSize:FixedHeaderSize+headerSize], &header))

	dataOffset := alignedOffset(FixedHeaderSize + headerSize)
	assert.Zero(t, dataOffset%HeaderAlignment)
	assert.Equal(t, int64(len(data)), dataOffset+dataSize)

	var stored [32]byte
	copy(stored[:], data[ChecksumOffset:ChecksumOffset+ChecksumSize])
	assert.Equal(t, ComputeChecksum(data[dataOffset:]), stored)

	l := m.Layout()
	want := int64(l.WeightCount()+l.LinearCount()+2) * 4
	assert.Equal(t, want, dataSize)
	assert.Len(t, header.Tensors, 3)
}

func TestLoadDetectsCorruption(t *testing.T) {
	m := trainedModel(t)
	path := saveTemp(t, m, WriteOptions{})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	data[len(data)-5] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o600))

	_, _, err = Load(path, nil)
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	// Header-only inspection still works.
	header, err := Inspect(path)
	require.NoError(t, err)
	assert.Equal(t, 3, header.Model.Fields)

	// Skipping the checksum loads the damaged state.
	r, err := OpenWithOptions(path, ReaderOptions{SkipChecksumValidation: true})
	require.NoError(t, err)
	defer r.Close()
	assert.ErrorIs(t, r.VerifyChecksum(), ErrChecksumMismatch)
}

func TestOpenRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	small := filepath.Join(dir, "small.ffm")
	require.NoError(t, os.WriteFile(small, []byte("FFMK"), 0o600))
	_, err := Open(small)
	assert.Error(t, err)

	m := trainedModel(t)
	var buf bytes.Buffer
	require.NoError(t, WriteTo(&buf, m, WriteOptions{}))
	good := buf.Bytes()

	magic := append([]byte(nil), good...)
	copy(magic[0:4], "BORN")
	path := filepath.Join(dir, "magic.ffm")
	require.NoError(t, os.WriteFile(path, magic, 0o600))
	_, err = Open(path)
	assert.ErrorIs(t, err, ErrInvalidMagic)

	version := append([]byte(nil), good...)
	binary.LittleEndian.PutUint32(version[4:8], 9)
	path = filepath.Join(dir, "version.ffm")
	require.NoError(t, os.WriteFile(path, version, 0o600))
	_, err = Open(path)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	truncated := good[:len(good)-16]
	path = filepath.Join(dir, "truncated.ffm")
	require.NoError(t, os.WriteFile(path, truncated, 0o600))
	_, err = Open(path)
	assert.ErrorIs(t, err, ErrOutOfBounds)

	_, err = Open(filepath.Join(dir, "missing.ffm"))
	assert.Error(t, err)
}

func TestReaderAccessors(t *testing.T) {
	m := trainedModel(t)
	path := saveTemp(t, m, WriteOptions{Metadata: map[string]string{"k": "v"}})

	r, err := Open(path)
	require.NoError(t, err)

	assert.Equal(t, uint32(FormatVersion), r.Version())
	assert.Equal(t, FlagHasMetadata, r.Flags())
	assert.ElementsMatch(t, []string{TensorWeights, TensorLinear, TensorBias}, r.TensorNames())

	bias, err := r.TensorData(TensorBias)
	require.NoError(t, err)
	require.Len(t, bias, 8)
	bw, bg := m.Bias()
	var buf bytes.Buffer
	require.NoError(t, writeFloat32s(&buf, []float32{bw, bg}, make([]byte, 8)))
	assert.Equal(t, buf.Bytes(), bias)

	_, err = r.TensorInfo("missing")
	assert.ErrorIs(t, err, ErrMissingTensor)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, err = r.TensorData(TensorBias)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = r.Restore(nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRestrictedFlag(t *testing.T) {
	m, err := ffm.New(ffm.Config{HashBits: 2, Fields: 20, Restricted: true})
	require.NoError(t, err)
	defer m.Close()

	path := saveTemp(t, m, WriteOptions{})
	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, FlagRestricted, r.Flags()&FlagRestricted)

	loaded, err := r.Restore(nil)
	require.NoError(t, err)
	defer loaded.Close()
	assert.True(t, loaded.Config().Restricted)
}

func TestWriteSafeTensors(t *testing.T) {
	m := trainedModel(t)

	var buf bytes.Buffer
	require.NoError(t, WriteSafeTensors(&buf, m, map[string]string{"source": "test"}))
	data := buf.Bytes()

	headerSize := binary.LittleEndian.Uint64(data[0:8])
	var header map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data[8:8+headerSize], &header))

	var meta map[string]string
	require.NoError(t, json.Unmarshal(header["__metadata__"], &meta))
	assert.Equal(t, "ffm", meta["format"])
	assert.Equal(t, "test", meta["source"])

	// Alphabetical order: bias, linear, weights.
	var bias, linear, weights SafeTensorHeader
	require.NoError(t, json.Unmarshal(header[TensorBias], &bias))
	require.NoError(t, json.Unmarshal(header[TensorLinear], &linear))
	require.NoError(t, json.Unmarshal(header[TensorWeights], &weights))

	assert.Equal(t, [2]int64{0, 8}, bias.DataOffsets)
	assert.Equal(t, bias.DataOffsets[1], linear.DataOffsets[0])
	assert.Equal(t, linear.DataOffsets[1], weights.DataOffsets[0])
	assert.Equal(t, []int64{16, 3, ffm.BlockStride}, weights.Shape)
	assert.Equal(t, "F32", weights.DType)
	assert.Equal(t, int64(len(data))-8-int64(headerSize), weights.DataOffsets[1])

	path := filepath.Join(t.TempDir(), "model.safetensors")
	require.NoError(t, ExportSafeTensors(path, m, nil))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), weights.DataOffsets[1])
}
