//go:build !unix

package align

// allocate carves an aligned region out of a heap allocation (portable implementation).
func allocate(size, alignment int) ([]byte, bool, error) {
	return heapAligned(size, alignment), false, nil
}

// unmap is never called for heap buffers.
func unmap([]byte) error {
	return nil
}
