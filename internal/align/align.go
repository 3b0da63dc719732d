// Package align provides SIMD-aligned float32 buffers for large weight tables.
//
// On unix the memory comes from an anonymous private mapping, which is page
// aligned and zero filled, and is returned to the OS on Close. Elsewhere the
// buffer is carved out of an over-sized heap allocation.
package align

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/ajroetker/go-highway/hwy"
	"golang.org/x/sys/cpu"
)

// MinAlignment is the smallest alignment ever handed out: one 8-wide float32 vector.
const MinAlignment = 32

// Common errors.
var (
	ErrOutOfMemory = errors.New("aligned allocation failed")
	ErrInvalidSize = errors.New("invalid buffer size")
	ErrClosed      = errors.New("buffer already released")
)

// Alignment returns the byte alignment used for new buffers on this machine.
// It is the widest of 32 bytes, the active SIMD register width, and 64 bytes
// when AVX-512 is present.
func Alignment() int {
	a := max(MinAlignment, hwy.CurrentWidth())
	if cpu.X86.HasAVX512F {
		a = max(a, 64)
	}
	return a
}

// Buffer is an aligned block of float32 scalars. The zero value is not usable.
type Buffer struct {
	data   []float32
	raw    []byte // backing allocation, released on Close
	mapped bool
}

// NewFloat32 allocates n float32 scalars aligned to Alignment().
// The returned memory is zeroed.
func NewFloat32(n int) (*Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d scalars", ErrInvalidSize, n)
	}
	const scalar = int(unsafe.Sizeof(float32(0)))
	if n > maxInt/scalar {
		return nil, fmt.Errorf("%w: %d scalars overflow", ErrInvalidSize, n)
	}

	raw, mapped, err := allocate(n*scalar, Alignment())
	if err != nil {
		return nil, fmt.Errorf("%w: %d bytes: %w", ErrOutOfMemory, n*scalar, err)
	}

	return &Buffer{
		data:   unsafe.Slice((*float32)(unsafe.Pointer(&raw[0])), n),
		raw:    raw,
		mapped: mapped,
	}, nil
}

// Float32 returns the aligned scalars. The slice is invalid after Close.
func (b *Buffer) Float32() []float32 {
	return b.data
}

// Len returns the number of scalars.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the aligned scalars viewed as little-endian bytes.
func (b *Buffer) Bytes() []byte {
	if len(b.data) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&b.data[0])), len(b.data)*4)
}

// Close releases the buffer. Calling Close twice returns ErrClosed.
func (b *Buffer) Close() error {
	if b.raw == nil {
		return ErrClosed
	}
	raw := b.raw
	b.raw = nil
	b.data = nil
	if b.mapped {
		return unmap(raw)
	}
	return nil
}

// IsAligned reports whether the first element of s sits on an a-byte boundary.
func IsAligned(s []float32, a int) bool {
	if len(s) == 0 {
		return true
	}
	return uintptr(unsafe.Pointer(&s[0]))%uintptr(a) == 0
}

const maxInt = int(^uint(0) >> 1)

// heapAligned over-allocates on the Go heap and slices to the first aligned address.
func heapAligned(size, alignment int) []byte {
	buf := make([]byte, size+alignment)
	off := 0
	if rem := int(uintptr(unsafe.Pointer(&buf[0])) % uintptr(alignment)); rem != 0 {
		off = alignment - rem
	}
	return buf[off : off+size : off+size]
}
