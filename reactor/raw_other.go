//go:build !linux
// +build !linux

// File: reactor/raw_other.go
// Author: momentics <momentics@gmail.com>
//
// Without the raw fast path every operation completes asynchronously.

package reactor

import (
	"net"
	"syscall"
)

func tryRecv(syscall.RawConn, []byte) (int, bool, error) { return 0, false, nil }

func trySend(syscall.RawConn, []byte) (int, bool, error) { return 0, false, nil }

func tryAccept(syscall.RawConn) (net.Conn, bool, error) { return nil, false, nil }
