//go:build !linux
// +build !linux

// File: pool/arena_other.go
// Author: momentics <momentics@gmail.com>
//
// Heap-backed arena region for platforms without the mmap path.

package pool

func allocRegion(size int) ([]byte, func([]byte) error, error) {
	return make([]byte, size), nil, nil
}
