// File: transport/tcp/acceptor.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Acceptor owns the listening socket and a dedicated accept loop. At most one
// accept is outstanding: the loop issues an accept, then waits on a one-slot
// flow channel that the completion handler fills once the new connection has
// been extracted.

package tcp

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/lthibault/log"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/reactor"
)

// Wildcard is the host string that binds every local IPv4 address.
const Wildcard = "0.0.0.0"

// NewClientFunc receives every accepted connection together with the
// acceptor's opaque token.
type NewClientFunc func(conn net.Conn, token any)

// listener is the completion-style accept surface the loop drives.
type listener interface {
	AcceptAsync(op *reactor.Operation) (pending bool, err error)
	Addr() net.Addr
	Close() error
}

// Option configures an Acceptor.
type Option func(*Acceptor)

// WithLogger sets the logger. If l == nil, a default logger is used.
func WithLogger(l log.Logger) Option {
	if l == nil {
		l = log.New()
	}

	return func(a *Acceptor) {
		a.log = l
	}
}

// WithToken sets the opaque token passed to the new-client callback.
func WithToken(token any) Option {
	return func(a *Acceptor) {
		a.op.Token = token
	}
}

// WithCPU pins the accept loop to one CPU. Negative values disable pinning.
func WithCPU(cpu int) Option {
	return func(a *Acceptor) {
		a.cpu = cpu
	}
}

// Acceptor accepts TCP connections one at a time.
type Acceptor struct {
	log log.Logger
	cpu int

	mu          sync.RWMutex
	onNewClient NewClientFunc

	ln   listener
	op   *reactor.Operation
	flow chan struct{}

	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewAcceptor returns an idle acceptor.
func NewAcceptor(opts ...Option) *Acceptor {
	a := &Acceptor{
		cpu:  -1,
		flow: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
	a.op = reactor.NewOperation(a.acceptCompleted)

	for _, option := range withDefaults(opts) {
		option(a)
	}

	return a
}

func withDefaults(opts []Option) []Option {
	return append([]Option{
		WithLogger(nil),
	}, opts...)
}

// OnNewClient registers the callback for accepted connections. It may run
// concurrently with itself and with the next accept.
func (a *Acceptor) OnNewClient(fn NewClientFunc) {
	a.mu.Lock()
	a.onNewClient = fn
	a.mu.Unlock()
}

// Start binds host:port, listens with the given backlog and launches the
// accept loop. It does not block.
func (a *Acceptor) Start(host string, port, backlog int) error {
	ip, err := resolveHost(host)
	if err != nil {
		return err
	}
	if port < 0 || port > 0xffff {
		return api.NewError(api.ErrCodeInvalidArgument, "port out of range").
			WithContext("port", port)
	}
	if backlog < 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "negative backlog").
			WithContext("backlog", backlog)
	}

	ln, err := listenTCP(ip, port, backlog)
	if err != nil {
		a.log.WithError(err).
			WithField("addr", net.JoinHostPort(host, strconv.Itoa(port))).
			Error("listen failed")
		return fmt.Errorf("listen %s:%d: %w", host, port, err)
	}

	a.log = a.log.WithField("addr", ln.Addr().String())
	a.log.WithField("backlog", backlog).Info("listening")

	return a.start(reactor.NewListener(ln))
}

func (a *Acceptor) start(ln listener) error {
	if a.ln != nil {
		return api.ErrAlreadyInitialized
	}
	a.ln = ln
	go a.serve()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (a *Acceptor) Addr() net.Addr {
	if a.ln == nil {
		return nil
	}
	return a.ln.Addr()
}

// Close stops the accept loop and closes the listening socket. Connections
// already handed off are not affected.
func (a *Acceptor) Close() (err error) {
	a.closeOnce.Do(func() {
		close(a.quit)
		if a.ln == nil {
			close(a.done)
			return
		}
		err = a.ln.Close()
		<-a.done
	})
	return
}

func (a *Acceptor) serve() {
	defer close(a.done)

	if a.cpu >= 0 {
		if err := pinThread(a.cpu); err != nil {
			a.log.WithError(err).WithField("cpu", a.cpu).Warn("cpu pinning failed")
		}
	}

	for {
		select {
		case <-a.quit:
			return
		default:
		}

		pending, err := a.ln.AcceptAsync(a.op)
		if err != nil {
			if isClosed(err) {
				return
			}
			a.log.WithError(err).Debug("accept not issued, retrying")
			continue
		}

		// acceptCompleted copies the result out of op before raising flow,
		// so the loop cannot reissue op under it. The hand-off must not run
		// here: the callback may keep servicing the connection.
		if !pending {
			go a.acceptCompleted(a.op)
		}

		select {
		case <-a.flow:
		case <-a.quit:
			return
		}
	}
}

// acceptCompleted handles both synchronous and asynchronous completions.
func (a *Acceptor) acceptCompleted(op *reactor.Operation) {
	conn, token, err := op.AcceptedConn(), op.Token, op.Err()

	// release the loop before handing off
	select {
	case a.flow <- struct{}{}:
	default:
	}

	if err != nil || conn == nil {
		if err != nil && !isClosed(err) {
			a.log.WithError(err).Debug("accept failed")
		}
		return
	}

	select {
	case <-a.quit:
		conn.Close()
		return
	default:
	}

	a.mu.RLock()
	fn := a.onNewClient
	a.mu.RUnlock()

	if fn == nil {
		a.log.WithField("remote", conn.RemoteAddr().String()).
			Warn("no client handler registered, dropping connection")
		conn.Close()
		return
	}

	fn(conn, token)
}

func resolveHost(host string) (net.IP, error) {
	if host == Wildcard {
		return net.IPv4zero, nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}

	return nil, api.NewError(api.ErrCodeInvalidArgument, "host must be a literal IPv4 address").
		WithContext("host", host)
}

func isClosed(err error) bool {
	return errors.Is(err, api.ErrClosed) || errors.Is(err, net.ErrClosed)
}
