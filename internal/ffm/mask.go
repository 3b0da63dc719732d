package ffm

// maskBit reports whether pair i is enabled. Bit i lives in word i>>6 at
// position i&63.
func maskBit(mask []uint64, i int) bool {
	return (mask[i>>6]>>(uint(i)&63))&1 == 1
}

// MaskWords returns the number of 64-bit words needed for n pair bits.
func MaskWords(n int) int {
	return (n + 63) >> 6
}

// PairCount returns how many mask bits an example consumes: the number of
// inner-loop pair tests that are not cut off by the field restriction.
// Pairs later skipped by a zero mask bit are counted.
func (m *Model) PairCount(features []Feature) int {
	n := 0
	for a, fa := range features {
		_, fieldA := m.layout.Decode(fa.Index)
		if fieldA < m.minAField {
			continue
		}
		for _, fb := range features[:a] {
			_, fieldB := m.layout.Decode(fb.Index)
			if fieldB > m.maxBField {
				break
			}
			n++
		}
	}
	return n
}
