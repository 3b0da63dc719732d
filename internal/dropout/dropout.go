// Package dropout generates pair masks for the FFM kernel.
//
// A mask is a little-endian bitset: bit i lives in word i>>6 at position
// i&63 and enables the i-th interaction pair of an example.
package dropout

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/born-ml/ffm/internal/ffm"
)

// ErrInvalidKeep is returned for keep probabilities outside (0, 1].
var ErrInvalidKeep = errors.New("keep probability must be in (0, 1]")

// Generator draws Bernoulli masks. It is not safe for concurrent use.
type Generator struct {
	keep float64
	rnd  *rand.Rand
}

// New creates a generator that keeps each pair with probability keep.
func New(keep float64, seed uint64) (*Generator, error) {
	if !(keep > 0 && keep <= 1) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeep, keep)
	}
	return &Generator{
		keep: keep,
		rnd:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)), //nolint:gosec // masks are not security-critical
	}, nil
}

// Keep returns the keep probability.
func (g *Generator) Keep() float64 {
	return g.keep
}

// Mask returns a mask of n pair bits, each set with probability Keep.
func (g *Generator) Mask(n int) []uint64 {
	return g.MaskInto(nil, n)
}

// MaskInto is Mask reusing dst when it has enough capacity.
func (g *Generator) MaskInto(dst []uint64, n int) []uint64 {
	if g.keep == 1 {
		return FullInto(dst, n)
	}

	dst = resize(dst, ffm.MaskWords(n))
	for i := range n {
		if g.rnd.Float64() < g.keep {
			dst[i>>6] |= 1 << (uint(i) & 63)
		}
	}
	return dst
}

// Full returns a mask with exactly the first n bits set.
func Full(n int) []uint64 {
	return FullInto(nil, n)
}

// FullInto is Full reusing dst when it has enough capacity.
func FullInto(dst []uint64, n int) []uint64 {
	dst = resize(dst, ffm.MaskWords(n))
	for i := 0; i < n>>6; i++ {
		dst[i] = ^uint64(0)
	}
	if rem := uint(n) & 63; rem != 0 {
		dst[n>>6] = 1<<rem - 1
	}
	return dst
}

// resize returns a zeroed slice of length words backed by dst when possible.
func resize(dst []uint64, words int) []uint64 {
	if cap(dst) < words {
		return make([]uint64, words)
	}
	dst = dst[:words]
	clear(dst)
	return dst
}
