//go:build linux
// +build linux

// File: reactor/raw_linux.go
// Author: momentics <momentics@gmail.com>
//
// Non-blocking first attempts on the raw descriptor. Go sockets are already
// in non-blocking mode, so a single syscall either completes or returns
// EAGAIN, in which case the caller falls back to the netpoller.

package reactor

import (
	"io"
	"net"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func wouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINTR
}

func tryRecv(raw syscall.RawConn, b []byte) (n int, done bool, err error) {
	if raw == nil || len(b) == 0 {
		return 0, false, nil
	}
	var serr error
	if cerr := raw.Read(func(fd uintptr) bool {
		n, serr = unix.Read(int(fd), b)
		return true
	}); cerr != nil {
		return 0, true, cerr
	}
	switch {
	case wouldBlock(serr):
		return 0, false, nil
	case serr != nil:
		return 0, true, os.NewSyscallError("read", serr)
	case n == 0:
		return 0, true, io.EOF
	}
	return n, true, nil
}

func trySend(raw syscall.RawConn, b []byte) (n int, done bool, err error) {
	if raw == nil || len(b) == 0 {
		return 0, false, nil
	}
	var serr error
	if cerr := raw.Write(func(fd uintptr) bool {
		n, serr = unix.Write(int(fd), b)
		return true
	}); cerr != nil {
		return 0, true, cerr
	}
	switch {
	case wouldBlock(serr):
		return 0, false, nil
	case serr != nil:
		return 0, true, os.NewSyscallError("write", serr)
	}
	return n, true, nil
}

func tryAccept(raw syscall.RawConn) (c net.Conn, done bool, err error) {
	if raw == nil {
		return nil, false, nil
	}
	var (
		nfd  int
		serr error
	)
	// A listener's RawConn only supports Control; Read fails with EINVAL.
	// The descriptor is already non-blocking, so accept4 returns EAGAIN when
	// the queue is empty.
	if cerr := raw.Control(func(fd uintptr) {
		nfd, _, serr = unix.Accept4(int(fd), unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	}); cerr != nil {
		return nil, true, cerr
	}
	switch {
	case wouldBlock(serr), serr == unix.ECONNABORTED:
		return nil, false, nil
	case serr != nil:
		return nil, true, os.NewSyscallError("accept4", serr)
	}

	f := os.NewFile(uintptr(nfd), "tcp")
	defer f.Close()
	// FileConn dups the descriptor; f's copy is closed on return.
	c, err = net.FileConn(f)
	return c, true, err
}
