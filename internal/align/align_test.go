package align

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlignment_AtLeast32(t *testing.T) {
	a := Alignment()
	assert.GreaterOrEqual(t, a, MinAlignment)
	assert.Zero(t, a&(a-1), "alignment must be a power of two")
}

func TestNewFloat32_AlignedAndZeroed(t *testing.T) {
	for _, n := range []int{1, 7, 16, 1000, 1 << 16} {
		buf, err := NewFloat32(n)
		require.NoError(t, err)

		data := buf.Float32()
		require.Len(t, data, n)
		assert.True(t, IsAligned(data, Alignment()), "n=%d", n)
		for i, v := range data {
			if v != 0 {
				t.Fatalf("n=%d: data[%d] = %v, want 0", n, i, v)
			}
		}
		assert.Len(t, buf.Bytes(), 4*n)
		require.NoError(t, buf.Close())
	}
}

func TestNewFloat32_Writable(t *testing.T) {
	buf, err := NewFloat32(64)
	require.NoError(t, err)
	defer buf.Close()

	data := buf.Float32()
	for i := range data {
		data[i] = float32(i)
	}
	assert.Equal(t, float32(63), buf.Float32()[63])
	assert.Equal(t, 64, buf.Len())
}

func TestNewFloat32_InvalidSize(t *testing.T) {
	for _, n := range []int{0, -1} {
		_, err := NewFloat32(n)
		assert.True(t, errors.Is(err, ErrInvalidSize), "n=%d: %v", n, err)
	}
}

func TestBuffer_DoubleClose(t *testing.T) {
	buf, err := NewFloat32(8)
	require.NoError(t, err)
	require.NoError(t, buf.Close())
	assert.ErrorIs(t, buf.Close(), ErrClosed)
	assert.Nil(t, buf.Float32())
}

func TestHeapAligned(t *testing.T) {
	for _, a := range []int{32, 64, 128} {
		b := heapAligned(100, a)
		assert.Len(t, b, 100)
		assert.Zero(t, uintptr(unsafe.Pointer(&b[0]))%uintptr(a))
		assert.Equal(t, 100, cap(b))
	}
}
