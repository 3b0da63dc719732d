//go:build unix

package align

import "golang.org/x/sys/unix"

// allocate maps anonymous private memory (Unix implementation).
// Mappings are page aligned, which satisfies any SIMD alignment.
func allocate(size, alignment int) ([]byte, bool, error) {
	if alignment > unix.Getpagesize() {
		return heapAligned(size, alignment), false, nil
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// unmap releases a mapping created by allocate (Unix implementation).
func unmap(data []byte) error {
	return unix.Munmap(data)
}
