// File: session/token.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Default session token: hands received bytes to a MessageHandler and
// offers a blocking Send over the slot's send segment.

package session

import (
	"io"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/reactor"
	"github.com/momentics/hioload-net/server"
)

var _ server.Token = (*Token)(nil)

// MessageHandler receives the bytes of one receive completion. p aliases the
// receive segment and is only valid until the handler returns.
type MessageHandler func(t *Token, p []byte)

// Token is a reusable per-slot session. Each connection bound to it gets a
// fresh id.
type Token struct {
	handler MessageHandler

	mu      sync.Mutex
	id      string
	sock    reactor.Socket
	recv    *reactor.Operation
	send    *reactor.Operation
	gen     uint64 // bumped by every Bind
	closed  bool
	done    chan struct{}
	onClose []func(*Token)

	sendMu   sync.Mutex
	sendDone chan struct{}
}

// NewToken returns an unbound token. A nil handler discards received bytes.
func NewToken(h MessageHandler) *Token {
	if h == nil {
		h = func(*Token, []byte) {}
	}

	return &Token{
		handler:  h,
		id:       uuid.NewString(),
		closed:   true,
		sendDone: make(chan struct{}, 1),
	}
}

// Factory adapts NewToken to server.TokenFactory.
func Factory(h MessageHandler) server.TokenFactory {
	return func() server.Token { return NewToken(h) }
}

// ID identifies the current connection. It changes once the connection is
// closed.
func (t *Token) ID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

// OnClose registers fn to run once when the current connection closes.
// Hooks may use the token's other methods but must not call Close: the
// closing call is still in progress and a nested Close waits for it.
func (t *Token) OnClose(fn func(*Token)) {
	t.mu.Lock()
	t.onClose = append(t.onClose, fn)
	t.mu.Unlock()
}

// RemoteAddr returns the peer address, or nil when unbound.
func (t *Token) RemoteAddr() net.Addr {
	if sock := t.Socket(); sock != nil {
		return sock.RemoteAddr()
	}
	return nil
}

func (t *Token) Bind(recv, send *reactor.Operation, sock reactor.Socket) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.recv, t.send, t.sock = recv, send, sock
	t.gen++
	t.closed = false
	t.done = make(chan struct{})

	select {
	case <-t.sendDone:
	default:
	}
}

func (t *Token) Socket() reactor.Socket {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sock
}

func (t *Token) ReceiveOperation() *reactor.Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recv
}

func (t *Token) SendOperation() *reactor.Operation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.send
}

func (t *Token) OnReceive(buf []byte, offset, length int) {
	t.handler(t, buf[offset:offset+length:offset+length])
}

func (t *Token) OnSendCompleted(*reactor.Operation) {
	select {
	case t.sendDone <- struct{}{}:
	default:
	}
}

// Handle pins the connection currently bound to a token. Code that keeps a
// session beyond its MessageHandler should hold a Handle rather than the
// Token, since the token is rebound to the next peer once this one closes.
type Handle struct {
	t   *Token
	id  string
	gen uint64
}

// Handle returns a handle on the current connection.
func (t *Token) Handle() Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Handle{t: t, id: t.id, gen: t.gen}
}

// ID returns the id of the pinned connection.
func (h Handle) ID() string { return h.id }

// Send behaves like Token.Send but fails with api.ErrClosed once the pinned
// connection has closed, even if the token now serves another peer.
func (h Handle) Send(p []byte) error { return h.t.write(p, &h.gen) }

// Send writes p in segment-sized chunks and blocks until all of it has been
// handed to the kernel or the connection fails.
func (t *Token) Send(p []byte) error { return t.write(p, nil) }

func (t *Token) write(p []byte, gen *uint64) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	sock, op, closed := t.sock, t.send, t.closed
	stale := gen != nil && *gen != t.gen
	t.mu.Unlock()
	if closed || stale {
		return api.ErrClosed
	}

	seg := op.Segment()
	for len(p) > 0 {
		n := copy(seg, p)
		p = p[n:]

		for pending := n; pending > 0; {
			op.SetCount(pending)
			if sock.SendAsync(op) {
				<-t.sendDone
			}
			if err := op.Err(); err != nil {
				return err
			}

			sent := op.BytesTransferred()
			if sent == 0 {
				return io.ErrShortWrite
			}
			pending -= sent
			copy(seg, seg[sent:sent+pending])
		}
	}

	return nil
}

// Close closes the socket, waits for an in-flight Send to finish and runs
// the OnClose hooks. Concurrent callers block until the first one is done,
// so Close must not be called from an OnClose hook.
func (t *Token) Close() {
	t.mu.Lock()
	if t.closed {
		done := t.done
		t.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	t.closed = true
	sock, done := t.sock, t.done
	t.mu.Unlock()

	sock.Close()

	// a pending send completes with an error once the socket is gone
	t.sendMu.Lock()
	t.sendMu.Unlock()

	t.mu.Lock()
	hooks := t.onClose
	t.onClose = nil
	t.mu.Unlock()

	for _, fn := range hooks {
		fn(t)
	}

	t.mu.Lock()
	t.id = uuid.NewString()
	t.mu.Unlock()
	close(done)
}
