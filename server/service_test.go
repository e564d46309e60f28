package server

import (
	"io"
	"net"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/reactor"
	test_server "github.com/momentics/hioload-net/server/test"
)

// scriptSocket completes receives synchronously from a script. An empty
// entry completes as end of stream; when the script runs out, the receive
// stays pending until deliver or Close.
type scriptSocket struct {
	mu      sync.Mutex
	reads   [][]byte
	depths  []int
	pending *reactor.Operation
	closed  bool
}

func (s *scriptSocket) ReceiveAsync(op *reactor.Operation) bool {
	op.Start(reactor.OpReceive)
	pc := make([]uintptr, 256)
	depth := runtime.Callers(1, pc)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.depths = append(s.depths, depth)

	switch {
	case s.closed:
		op.SetResult(0, net.ErrClosed)
		return false
	case len(s.reads) == 0:
		s.pending = op
		return true
	}

	p := s.reads[0]
	s.reads = s.reads[1:]
	if len(p) == 0 {
		op.SetResult(0, io.EOF)
		return false
	}
	op.SetResult(copy(op.Segment(), p), nil)
	return false
}

func (s *scriptSocket) deliver(p []byte) {
	s.mu.Lock()
	op := s.pending
	s.pending = nil
	s.mu.Unlock()

	op.SetResult(copy(op.Segment(), p), nil)
	go op.Complete()
}

// take removes the pending receive without completing it.
func (s *scriptSocket) take() *reactor.Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	op := s.pending
	s.pending = nil
	return op
}

func (s *scriptSocket) SendAsync(op *reactor.Operation) bool {
	op.Start(reactor.OpSend)
	op.SetResult(op.Count(), nil)
	return false
}

func (s *scriptSocket) RemoteAddr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 1} }

func (s *scriptSocket) Close() error {
	s.mu.Lock()
	s.closed = true
	op := s.pending
	s.pending = nil
	s.mu.Unlock()

	if op != nil {
		op.SetResult(0, net.ErrClosed)
		go op.Complete()
	}
	return nil
}

// mockSlot wires a MockToken to remember what it was bound to.
type mockSlot struct {
	*test_server.MockToken

	mu     sync.Mutex
	recv   *reactor.Operation
	send   *reactor.Operation
	sock   reactor.Socket
	closes atomic.Int32
}

func newMockSlot(ctrl *gomock.Controller) *mockSlot {
	m := &mockSlot{MockToken: test_server.NewMockToken(ctrl)}

	m.EXPECT().
		Bind(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(recv, send *reactor.Operation, sock reactor.Socket) {
			m.mu.Lock()
			m.recv, m.send, m.sock = recv, send, sock
			m.mu.Unlock()
		}).
		AnyTimes()
	m.EXPECT().
		ReceiveOperation().
		DoAndReturn(func() *reactor.Operation {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.recv
		}).
		AnyTimes()
	m.EXPECT().
		SendOperation().
		DoAndReturn(func() *reactor.Operation {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.send
		}).
		AnyTimes()
	m.EXPECT().
		Socket().
		DoAndReturn(func() reactor.Socket {
			m.mu.Lock()
			defer m.mu.Unlock()
			return m.sock
		}).
		AnyTimes()
	m.EXPECT().
		Close().
		Do(func() {
			m.closes.Add(1)
			if sock := m.Socket(); sock != nil {
				sock.Close()
			}
		}).
		AnyTimes()

	return m
}

type harness struct {
	svc     *NetworkService
	slots   []*mockSlot
	sockets chan *scriptSocket
	created chan Token
}

func newHarness(t *testing.T, ctrl *gomock.Controller, maxConn, segSize int, scripts ...[][]byte) *harness {
	t.Helper()

	h := &harness{
		sockets: make(chan *scriptSocket, len(scripts)+8),
		created: make(chan Token, maxConn+8),
	}
	for _, script := range scripts {
		h.sockets <- &scriptSocket{reads: script}
	}

	h.svc = NewNetworkService(
		WithTokenFactory(func() Token {
			slot := newMockSlot(ctrl)
			h.slots = append(h.slots, slot)
			return slot
		}),
		WithSessionCreated(func(tok Token) { h.created <- tok }),
		WithSocketFactory(func(net.Conn) reactor.Socket {
			select {
			case s := <-h.sockets:
				return s
			default:
				return &scriptSocket{}
			}
		}))

	require.NoError(t, h.svc.Initialize(maxConn, segSize))
	return h
}

// connect hands the service one side of a pipe and returns the other.
func (h *harness) connect(t *testing.T) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	t.Cleanup(func() {
		server.Close()
		client.Close()
	})
	h.svc.onNewClient(server, nil)
	return client
}

func (h *harness) slotFor(tok Token) *mockSlot {
	for _, s := range h.slots {
		if Token(s) == tok {
			return s
		}
	}
	return nil
}

func TestInitializePairsOperations(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	const maxConn, segSize = 8, 32
	h := newHarness(t, ctrl, maxConn, segSize)

	st := h.svc.Stats()
	assert.Equal(t, maxConn, st.Idle)
	assert.Equal(t, maxConn*segSize*2, st.Arena.Capacity)
	assert.Equal(t, maxConn*2, st.Arena.InUse)
	require.Len(t, h.slots, maxConn)

	offsets := map[int]bool{}
	for i := 0; i < maxConn; i++ {
		recv, send, ok := h.svc.popPair()
		require.True(t, ok)
		assert.Same(t, recv.Token, send.Token, "receive and send must serve the same token")
		assert.NotNil(t, h.slotFor(recv.Token.(Token)))

		for _, op := range []*reactor.Operation{recv, send} {
			assert.Equal(t, segSize, op.Size())
			assert.Zero(t, op.Offset()%segSize)
			assert.False(t, offsets[op.Offset()], "segment handed to two operations")
			offsets[op.Offset()] = true
		}
	}

	_, _, ok := h.svc.popPair()
	assert.False(t, ok)
}

func TestInitializeValidation(t *testing.T) {
	t.Parallel()

	s := NewNetworkService()
	assert.ErrorIs(t, s.Initialize(4, 64), api.ErrInvalidArgument, "no token factory")
	assert.ErrorIs(t, s.Listen("127.0.0.1", 0, 1), api.ErrNotInitialized)

	s = NewNetworkService(WithTokenFactory(func() Token { return nil }))
	assert.ErrorIs(t, s.Initialize(0, 64), api.ErrInvalidArgument)
	assert.ErrorIs(t, s.Initialize(4, 0), api.ErrInvalidArgument)
}

func TestNewClientBindsPairedOperations(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, ctrl, 2, 16)
	h.connect(t)

	tok := <-h.created
	slot := h.slotFor(tok)
	require.NotNil(t, slot)

	recv, send := slot.ReceiveOperation(), slot.SendOperation()
	require.NotNil(t, recv)
	require.NotNil(t, send)
	assert.Same(t, tok, recv.Token)
	assert.Same(t, tok, send.Token)
	assert.Equal(t, reactor.OpReceive, recv.LastOperation(), "receive loop started")

	assert.EqualValues(t, 1, h.svc.Connected())
	assert.EqualValues(t, 1, h.svc.Accepted())
}

func TestSynchronousReceivesRunIteratively(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	const n = 500
	script := make([][]byte, 0, n+1)
	for i := 0; i < n; i++ {
		script = append(script, []byte{byte(i), byte(i >> 8)})
	}
	script = append(script, nil)

	h := newHarness(t, ctrl, 1, 8, script)

	var got []int
	for _, slot := range h.slots {
		slot.EXPECT().
			OnReceive(gomock.Any(), gomock.Any(), gomock.Any()).
			Do(func(buf []byte, offset, length int) {
				require.Equal(t, 2, length)
				got = append(got, int(buf[offset])|int(buf[offset+1])<<8)
			}).
			Times(n)
	}

	h.connect(t)
	sock := (<-h.created).Socket().(*scriptSocket)

	require.Len(t, got, n)
	for i, v := range got {
		require.Equal(t, i, v, "out of order delivery")
	}

	// first issue comes from beginReceive, the rest from the loop
	require.Len(t, sock.depths, n+1)
	for _, d := range sock.depths[1:] {
		assert.Equal(t, sock.depths[1], d, "stack grew with synchronous completions")
	}

	assert.EqualValues(t, 1, h.slots[0].closes.Load())
	assert.Zero(t, h.svc.Connected(), "end of stream must release the slot")
	assert.Equal(t, 1, h.svc.Stats().Idle)
}

func TestAsyncReceiveCompletion(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, ctrl, 1, 8)
	received := make(chan string, 1)
	h.slots[0].EXPECT().
		OnReceive(gomock.Any(), gomock.Any(), gomock.Any()).
		Do(func(buf []byte, offset, length int) {
			received <- string(buf[offset : offset+length])
		})

	h.connect(t)
	sock := (<-h.created).Socket().(*scriptSocket)
	sock.deliver([]byte("late"))

	select {
	case s := <-received:
		assert.Equal(t, "late", s)
	case <-time.After(time.Second):
		t.Fatal("asynchronous completion not processed")
	}

	require.NoError(t, h.svc.Close())
	assert.Zero(t, h.svc.Connected())
}

func TestInvalidCompletionKindPanics(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, ctrl, 1, 8)
	h.connect(t)
	tok := <-h.created
	op := tok.Socket().(*scriptSocket).take()

	op.Start(reactor.OpSend)
	defer func() {
		v := recover()
		require.NotNil(t, v, "non-receive completion must panic")
		err, ok := v.(*api.Error)
		require.True(t, ok)
		assert.Equal(t, api.ErrCodeInternal, err.Code)
	}()
	h.svc.receiveCompleted(op)
}

func TestInvalidCompletionKindClosesOnlyThatConnection(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	probes := control.NewDebugProbes()
	h := newHarness(t, ctrl, 2, 8)
	h.svc.probes = probes
	h.svc.registerProbes()

	h.connect(t)
	h.connect(t)
	bad, good := <-h.created, <-h.created

	op := bad.Socket().(*scriptSocket).take()
	require.Same(t, bad.ReceiveOperation(), op)
	op.Start(reactor.OpAccept)
	require.NotPanics(t, op.Complete)

	assert.EqualValues(t, 1, h.slotFor(bad).closes.Load())
	assert.Zero(t, h.slotFor(good).closes.Load())
	assert.EqualValues(t, 1, h.svc.Connected())

	state := probes.DumpState()
	assert.Equal(t, 1, state["pools"].(map[string]int)["receive"])
}

func TestPoolExhaustionRejects(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, ctrl, 1, 8)
	h.connect(t)
	<-h.created

	client := h.connect(t)
	_, err := client.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF, "rejected connection must be closed")

	st := h.svc.Stats()
	assert.EqualValues(t, 2, st.Accepted)
	assert.EqualValues(t, 1, st.Rejected)
	assert.EqualValues(t, 1, st.Connected)
	assert.Len(t, h.created, 0, "no session for a rejected connection")
}

func TestAcceptedIsMonotonic(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	const m = 6
	scripts := make([][][]byte, m)
	for i := range scripts {
		scripts[i] = [][]byte{nil} // immediate end of stream
	}
	h := newHarness(t, ctrl, 2, 8, scripts...)

	for i := 0; i < m; i++ {
		h.connect(t)
		<-h.created
	}

	assert.EqualValues(t, m, h.svc.Accepted())
	assert.Zero(t, h.svc.Connected())
	assert.Zero(t, h.svc.Stats().Rejected, "closed sessions free their slot")
}

func TestCloseReportsSegmentReleaseFailures(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := newHarness(t, ctrl, 2, 8)

	// a segment handed back behind the service's back is no longer on loan
	require.NoError(t, h.svc.arena.Release(h.svc.segments[0]))

	err := h.svc.Close()
	assert.ErrorIs(t, err, api.ErrNotOnLoan)
	assert.Zero(t, h.svc.Stats().Arena.InUse, "remaining segments are still released")
	assert.NoError(t, h.svc.Close(), "second close is a no-op")
}
