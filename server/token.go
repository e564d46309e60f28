//go:generate mockgen -source=token.go -destination=test/token.go -package=test_server

package server

import (
	"net"

	"github.com/momentics/hioload-net/reactor"
)

// Token is the per-connection session the service drives. One Token is
// created per connection slot at initialization and reused across the
// connections that occupy that slot.
type Token interface {
	// Bind attaches the slot's operations and the accepted socket. It is
	// called once per connection, after the session-created notification.
	Bind(recv, send *reactor.Operation, sock reactor.Socket)

	Socket() reactor.Socket
	ReceiveOperation() *reactor.Operation
	SendOperation() *reactor.Operation

	// OnReceive delivers buf[offset:offset+length]. The bytes are only valid
	// for the duration of the call.
	OnReceive(buf []byte, offset, length int)

	// OnSendCompleted is called when an asynchronously issued send finishes.
	OnSendCompleted(op *reactor.Operation)

	// Close tears down the connection. It must be idempotent.
	Close()
}

// TokenFactory builds the Token for one connection slot.
type TokenFactory func() Token

// SessionCreatedFunc is notified once per accepted connection, before its
// receive loop starts.
type SessionCreatedFunc func(Token)

// SocketFactory wraps accepted connections.
type SocketFactory func(conn net.Conn) reactor.Socket
