// File: reactor/operation.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Reusable I/O operation context for completion-style socket operations.

package reactor

import (
	"net"
)

// OpKind identifies the last operation issued on an Operation.
type OpKind int

const (
	OpNone OpKind = iota
	OpAccept
	OpReceive
	OpSend
)

func (k OpKind) String() string {
	switch k {
	case OpAccept:
		return "accept"
	case OpReceive:
		return "receive"
	case OpSend:
		return "send"
	default:
		return "none"
	}
}

// CompletionFunc is invoked when an asynchronously issued operation finishes.
// It is never invoked for operations that completed synchronously.
type CompletionFunc func(op *Operation)

// Operation pairs one buffer segment with the transient state of a single
// outstanding socket operation. An Operation is reused across many
// operations but only ever has one in flight.
type Operation struct {
	// Token is opaque per-slot state, fixed when the pool is built.
	Token any

	// OnPanic, when set, receives any value the completion callback panics
	// with. Without it the panic propagates.
	OnPanic func(op *Operation, v any)

	completed CompletionFunc

	buf    []byte
	offset int
	size   int
	count  int

	kind        OpKind
	transferred int
	err         error
	accepted    net.Conn
}

// NewOperation creates an Operation whose asynchronous completions are
// delivered to completed.
func NewOperation(completed CompletionFunc) *Operation {
	return &Operation{completed: completed}
}

// SetBuffer binds op to buf[offset:offset+size]. The binding is expected to
// stay fixed for the lifetime of the Operation.
func (op *Operation) SetBuffer(buf []byte, offset, size int) {
	op.buf, op.offset, op.size, op.count = buf, offset, size, size
}

// Buffer returns the whole region the segment lives in.
func (op *Operation) Buffer() []byte { return op.buf }

// Offset returns the segment offset within Buffer.
func (op *Operation) Offset() int { return op.offset }

// Size returns the segment size.
func (op *Operation) Size() int { return op.size }

// Segment returns the bound segment.
func (op *Operation) Segment() []byte {
	end := op.offset + op.size
	return op.buf[op.offset:end:end]
}

// SetCount sets how many segment bytes the next send transmits.
func (op *Operation) SetCount(n int) {
	if n < 0 {
		n = 0
	}
	if n > op.size {
		n = op.size
	}
	op.count = n
}

// Count returns the active send length.
func (op *Operation) Count() int { return op.count }

// LastOperation reports the kind of the most recently started operation.
func (op *Operation) LastOperation() OpKind { return op.kind }

// BytesTransferred reports how many bytes the last operation moved.
func (op *Operation) BytesTransferred() int { return op.transferred }

// Err reports the completion status of the last operation; nil is success.
func (op *Operation) Err() error { return op.err }

// AcceptedConn returns the connection produced by the last accept.
func (op *Operation) AcceptedConn() net.Conn { return op.accepted }

// Start resets the transient fields and records kind as the operation in
// flight. Socket implementations call it before issuing.
func (op *Operation) Start(kind OpKind) {
	op.kind = kind
	op.transferred = 0
	op.err = nil
	op.accepted = nil
}

// SetResult records the outcome of the operation in flight.
func (op *Operation) SetResult(n int, err error) {
	if n < 0 {
		n = 0
	}
	op.transferred, op.err = n, err
}

// SetAccepted records the connection produced by an accept.
func (op *Operation) SetAccepted(c net.Conn) { op.accepted = c }

// Complete delivers op to its completion callback.
func (op *Operation) Complete() {
	if op.OnPanic != nil {
		defer func() {
			if v := recover(); v != nil {
				op.OnPanic(op, v)
			}
		}()
	}
	if op.completed != nil {
		op.completed(op)
	}
}
