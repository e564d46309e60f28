//go:build linux
// +build linux

// File: pool/arena_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux arena backing: anonymous private mapping kept outside the Go heap so
// the collector never scans the I/O region.

package pool

import (
	"os"

	"golang.org/x/sys/unix"
)

var mmap = unix.Mmap

func allocRegion(size int) ([]byte, func([]byte) error, error) {
	buf, err := mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, os.NewSyscallError("mmap", err)
	}
	return buf, unix.Munmap, nil
}
