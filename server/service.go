// File: server/service.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// NetworkService owns the buffer arena and the receive/send operation pools,
// takes connections from the acceptor and drives one receive loop per
// connection.

package server

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/lthibault/log"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/pool"
	"github.com/momentics/hioload-net/reactor"
	"github.com/momentics/hioload-net/transport/tcp"
)

// slotsPerConnection is one receive and one send segment.
const slotsPerConnection = 2

// Stats is a point-in-time view of the service.
type Stats struct {
	Connected int64  // live connections
	Accepted  uint64 // connections handed over by the acceptor, ever
	Rejected  uint64 // connections closed because no slot was free
	Idle      int    // free connection slots
	Arena     pool.ArenaStats
}

// NetworkService accepts TCP connections and services their receives from a
// pre-allocated arena.
type NetworkService struct {
	log            log.Logger
	metrics        api.Metrics
	probes         api.Debug
	newToken       TokenFactory
	newSocket      SocketFactory
	sessionCreated SessionCreatedFunc
	acceptCPU      int

	arena    *pool.Arena
	segments []pool.Segment

	// pairMu keeps the two pools aligned so that a popped receive and send
	// operation always belong to the same slot.
	pairMu   sync.Mutex
	recvPool api.ContextPool[*reactor.Operation]
	sendPool api.ContextPool[*reactor.Operation]

	acceptor *tcp.Acceptor

	connected atomic.Int64
	accepted  atomic.Uint64
	rejected  atomic.Uint64

	mu     sync.RWMutex
	closed bool
	live   sync.Map // Token -> struct{}
	wg     sync.WaitGroup
}

// NewNetworkService returns an uninitialized service.
func NewNetworkService(opts ...Option) *NetworkService {
	s := new(NetworkService)
	for _, option := range withDefaults(opts) {
		option(s)
	}
	return s
}

// Initialize sizes the arena to maxConnections*segmentSize*2 bytes and fills
// both pools with maxConnections pre-paired operations.
func (s *NetworkService) Initialize(maxConnections, segmentSize int) error {
	if s.arena != nil {
		return api.ErrAlreadyInitialized
	}
	if maxConnections <= 0 || segmentSize <= 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "connection and segment sizes must be positive").
			WithContext("max_connections", maxConnections).
			WithContext("segment_size", segmentSize)
	}
	if s.newToken == nil {
		return api.NewError(api.ErrCodeInvalidArgument, "no token factory")
	}

	arena, err := pool.NewArena(maxConnections*segmentSize*slotsPerConnection, segmentSize)
	if err != nil {
		return err
	}
	if err = arena.Init(); err != nil {
		return err
	}

	recvPool := pool.NewStack[*reactor.Operation](maxConnections)
	sendPool := pool.NewStack[*reactor.Operation](maxConnections)
	segments := make([]pool.Segment, 0, maxConnections*slotsPerConnection)

	for i := 0; i < maxConnections; i++ {
		token := s.newToken()

		recv, seg, err := s.newOperation(arena, token, s.receiveCompleted)
		if err != nil {
			arena.Close()
			return err
		}
		segments = append(segments, seg)

		send, seg, err := s.newOperation(arena, token, s.sendCompleted)
		if err != nil {
			arena.Close()
			return err
		}
		segments = append(segments, seg)

		recvPool.Push(recv)
		sendPool.Push(send)
	}

	s.arena, s.segments = arena, segments
	s.recvPool, s.sendPool = recvPool, sendPool
	s.registerProbes()

	s.log.With(log.F{
		"max_connections": maxConnections,
		"segment_size":    segmentSize,
		"arena_bytes":     arena.Capacity(),
	}).Debug("service initialized")

	return nil
}

func (s *NetworkService) newOperation(arena *pool.Arena, token Token, fn reactor.CompletionFunc) (*reactor.Operation, pool.Segment, error) {
	seg, err := arena.Acquire()
	if err != nil {
		return nil, seg, fmt.Errorf("acquire segment: %w", err)
	}

	op := reactor.NewOperation(fn)
	op.Token = token
	op.OnPanic = s.onPanic
	op.SetBuffer(arena.Bytes(), seg.Offset(), seg.Len())
	return op, seg, nil
}

func (s *NetworkService) registerProbes() {
	s.probes.RegisterProbe("arena", func() any { return s.arena.Stats() })
	s.probes.RegisterProbe("pools", func() any {
		return map[string]int{
			"receive":  s.recvPool.Len(),
			"send":     s.sendPool.Len(),
			"capacity": s.recvPool.Cap(),
		}
	})
	s.probes.RegisterProbe("connections", func() any {
		return map[string]any{
			"connected": s.Connected(),
			"accepted":  s.Accepted(),
			"rejected":  s.rejected.Load(),
		}
	})
}

// Listen starts the acceptor on host:port. host is "0.0.0.0" or a literal
// IPv4 address.
func (s *NetworkService) Listen(host string, port, backlog int) error {
	if s.arena == nil {
		return api.ErrNotInitialized
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return api.ErrClosed
	}
	if s.acceptor != nil {
		return api.ErrAlreadyInitialized
	}

	a := tcp.NewAcceptor(
		tcp.WithLogger(s.log),
		tcp.WithCPU(s.acceptCPU))
	a.OnNewClient(s.onNewClient)

	if err := a.Start(host, port, backlog); err != nil {
		return err
	}

	s.acceptor = a
	return nil
}

// Addr returns the listening address, or nil before Listen.
func (s *NetworkService) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.acceptor == nil {
		return nil
	}
	return s.acceptor.Addr()
}

// Connected returns the number of live connections.
func (s *NetworkService) Connected() int64 { return s.connected.Load() }

// Accepted returns the number of connections ever handed over by the
// acceptor. It never decreases.
func (s *NetworkService) Accepted() uint64 { return s.accepted.Load() }

// Stats returns a snapshot of counters, pool and arena state.
func (s *NetworkService) Stats() Stats {
	st := Stats{
		Connected: s.Connected(),
		Accepted:  s.Accepted(),
		Rejected:  s.rejected.Load(),
	}
	if s.arena != nil {
		st.Idle = s.recvPool.Len()
		st.Arena = s.arena.Stats()
	}
	return st
}

// Debug returns the probe registry the service reports into.
func (s *NetworkService) Debug() api.Debug { return s.probes }

// Close stops accepting, closes every live session, waits for their receive
// loops to finish and frees the arena.
func (s *NetworkService) Close() (err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	acceptor := s.acceptor
	s.mu.Unlock()

	if acceptor != nil {
		err = acceptor.Close()
	}

	s.live.Range(func(k, _ any) bool {
		k.(Token).Close()
		return true
	})
	s.wg.Wait()

	if s.arena != nil {
		for _, seg := range s.segments {
			if rerr := s.arena.Release(seg); rerr != nil {
				s.log.WithError(rerr).
					WithField("offset", seg.Offset()).
					Warn("segment release failed")
				err = errors.Join(err, fmt.Errorf("release segment %d: %w", seg.Offset(), rerr))
			}
		}
		s.segments = nil
		if cerr := s.arena.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}

	s.log.WithField("accepted", s.Accepted()).Debug("service closed")
	return
}

func (s *NetworkService) onNewClient(conn net.Conn, _ any) {
	if token := s.openSession(conn); token != nil {
		s.beginReceive(token)
	}
}

// openSession claims a slot for conn and binds it. It returns nil if conn
// was closed instead.
func (s *NetworkService) openSession(conn net.Conn) Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		conn.Close()
		return nil
	}

	s.accepted.Add(1)
	s.metrics.Incr("accepted")

	recv, send, ok := s.popPair()
	if !ok {
		s.rejected.Add(1)
		s.metrics.Incr("rejected")
		s.log.WithField("remote", conn.RemoteAddr().String()).
			Warn("connection limit reached, closing")
		conn.Close()
		return nil
	}

	s.metrics.Gauge("connected", s.connected.Add(1))

	token := recv.Token.(Token)
	if s.sessionCreated != nil {
		s.sessionCreated(token)
	}
	token.Bind(recv, send, s.newSocket(conn))

	s.live.Store(token, struct{}{})
	s.wg.Add(1)

	s.log.WithField("remote", conn.RemoteAddr().String()).Trace("session opened")
	return token
}

func (s *NetworkService) popPair() (recv, send *reactor.Operation, ok bool) {
	s.pairMu.Lock()
	defer s.pairMu.Unlock()

	if recv, ok = s.recvPool.Pop(); !ok {
		return nil, nil, false
	}
	if send, ok = s.sendPool.Pop(); !ok {
		s.recvPool.Push(recv)
		return nil, nil, false
	}
	if send.Token != recv.Token {
		panic(api.NewError(api.ErrCodeInternal, "operation pools out of step"))
	}
	return recv, send, true
}

func (s *NetworkService) pushPair(recv, send *reactor.Operation) {
	s.pairMu.Lock()
	s.recvPool.Push(recv)
	s.sendPool.Push(send)
	s.pairMu.Unlock()
}

// beginReceive runs on the acceptor's callback, outside any completion, so
// it recovers panics the same way Operation.Complete does.
func (s *NetworkService) beginReceive(t Token) {
	op := t.ReceiveOperation()
	defer func() {
		if v := recover(); v != nil {
			s.onPanic(op, v)
		}
	}()

	if !t.Socket().ReceiveAsync(op) {
		s.processReceive(op)
	}
}

// receiveCompleted is the asynchronous completion for receive operations.
func (s *NetworkService) receiveCompleted(op *reactor.Operation) {
	if kind := op.LastOperation(); kind != reactor.OpReceive {
		panic(api.NewError(api.ErrCodeInternal, "receive completion for non-receive operation").
			WithContext("op", kind.String()))
	}
	s.processReceive(op)
}

// processReceive handles one completion and keeps issuing receives for as
// long as they complete synchronously.
func (s *NetworkService) processReceive(op *reactor.Operation) {
	t := op.Token.(Token)
	for {
		n := op.BytesTransferred()
		if n == 0 || op.Err() != nil {
			s.closeClient(t, op.Err())
			return
		}

		s.metrics.Count("bytes.received", n)
		t.OnReceive(op.Buffer(), op.Offset(), n)

		if t.Socket().ReceiveAsync(op) {
			return
		}
	}
}

func (s *NetworkService) sendCompleted(op *reactor.Operation) {
	op.Token.(Token).OnSendCompleted(op)
}

// onPanic tears down the connection whose completion callback panicked.
func (s *NetworkService) onPanic(op *reactor.Operation, v any) {
	s.log.WithField("op", op.LastOperation().String()).
		WithField("panic", v).
		Error("completion handler failed")
	s.metrics.Incr("panics")

	t, ok := op.Token.(Token)
	if !ok {
		return
	}

	// A failed receive callback ends the receive loop, so the slot can be
	// reclaimed. Anywhere else, closing the socket makes the loop do it.
	if op == t.ReceiveOperation() {
		s.closeClient(t, fmt.Errorf("completion panic: %v", v))
		return
	}
	t.Close()
}

// closeClient closes t and returns its slot to the pools. Only the first call
// for a bound connection reclaims.
func (s *NetworkService) closeClient(t Token, err error) {
	if _, ok := s.live.LoadAndDelete(t); !ok {
		t.Close()
		return
	}
	defer s.wg.Done()

	t.Close()
	s.pushPair(t.ReceiveOperation(), t.SendOperation())
	s.metrics.Gauge("connected", s.connected.Add(-1))
	s.metrics.Incr("closed")

	if err != nil {
		s.log.WithError(err).Trace("session closed")
	}
}
