// File: reactor/socket.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Completion-style wrappers over net.Conn and net.TCPListener. Each issue
// call first tries the raw descriptor without blocking; if the kernel has
// nothing ready, the operation is parked on the Go netpoller and its
// completion callback fires from that goroutine.

package reactor

import (
	"net"
	"sync/atomic"
	"syscall"

	"github.com/momentics/hioload-net/api"
)

// Socket issues receive and send operations in completion style. The bool
// results report whether the operation is pending: false means it already
// completed and the caller must process op inline, because the completion
// callback will not fire.
type Socket interface {
	ReceiveAsync(op *Operation) (pending bool)
	SendAsync(op *Operation) (pending bool)
	RemoteAddr() net.Addr
	Close() error
}

// Conn implements Socket over a net.Conn.
type Conn struct {
	conn net.Conn
	raw  syscall.RawConn
}

// NewConn wraps c. Connections that expose a raw descriptor get the
// synchronous completion fast path.
func NewConn(c net.Conn) *Conn {
	return &Conn{conn: c, raw: rawConn(c)}
}

// ReceiveAsync reads into op's segment.
func (c *Conn) ReceiveAsync(op *Operation) bool {
	op.Start(OpReceive)
	buf := op.Segment()
	if n, done, err := tryRecv(c.raw, buf); done {
		op.SetResult(n, err)
		return false
	}
	go func() {
		n, err := c.conn.Read(buf)
		op.SetResult(n, err)
		op.Complete()
	}()
	return true
}

// SendAsync writes the first op.Count() bytes of op's segment. A completed
// send may have transferred fewer bytes than requested.
func (c *Conn) SendAsync(op *Operation) bool {
	op.Start(OpSend)
	buf := op.Segment()[:op.Count()]
	if n, done, err := trySend(c.raw, buf); done {
		op.SetResult(n, err)
		return false
	}
	go func() {
		n, err := c.conn.Write(buf)
		op.SetResult(n, err)
		op.Complete()
	}()
	return true
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Close closes the underlying connection; a pending operation completes
// with an error.
func (c *Conn) Close() error { return c.conn.Close() }

// NetConn exposes the wrapped connection.
func (c *Conn) NetConn() net.Conn { return c.conn }

// Listener issues accept operations in completion style.
type Listener struct {
	ln     *net.TCPListener
	raw    syscall.RawConn
	closed atomic.Bool
}

// NewListener wraps ln.
func NewListener(ln *net.TCPListener) *Listener {
	return &Listener{ln: ln, raw: rawConn(ln)}
}

// AcceptAsync starts one accept. A non-nil error means the operation could
// not be issued at all; otherwise pending has the same meaning as for
// Socket.
func (l *Listener) AcceptAsync(op *Operation) (pending bool, err error) {
	if l.closed.Load() {
		return false, api.ErrClosed
	}
	op.Start(OpAccept)
	if c, done, err := tryAccept(l.raw); done {
		op.SetAccepted(c)
		op.SetResult(0, err)
		return false, nil
	}
	go func() {
		c, err := l.ln.Accept()
		op.SetAccepted(c)
		op.SetResult(0, err)
		op.Complete()
	}()
	return true, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Close stops the listener. A pending accept completes with an error.
func (l *Listener) Close() error {
	l.closed.Store(true)
	return l.ln.Close()
}

func rawConn(v any) syscall.RawConn {
	sc, ok := v.(syscall.Conn)
	if !ok {
		return nil
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return nil
	}
	return raw
}
