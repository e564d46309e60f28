// File: server/options.go
// Package server defines functional options for the NetworkService.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"net"

	"github.com/lthibault/log"

	"github.com/momentics/hioload-net/api"
	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/reactor"
)

// Option customizes a NetworkService.
type Option func(*NetworkService)

// WithLogger sets the logger. If l == nil, a default logger is used.
func WithLogger(l log.Logger) Option {
	if l == nil {
		l = log.New()
	}

	return func(s *NetworkService) {
		s.log = l
	}
}

// WithMetrics sets the metrics sink. If m == nil, metrics are discarded.
func WithMetrics(m api.Metrics) Option {
	if m == nil {
		m = control.Nop()
	}

	return func(s *NetworkService) {
		s.metrics = m
	}
}

// WithSessionCreated registers the session-created notification.
func WithSessionCreated(fn SessionCreatedFunc) Option {
	return func(s *NetworkService) {
		s.sessionCreated = fn
	}
}

// WithTokenFactory sets the constructor for per-slot session tokens. It is
// required before Initialize.
func WithTokenFactory(fn TokenFactory) Option {
	return func(s *NetworkService) {
		s.newToken = fn
	}
}

// WithSocketFactory overrides how accepted connections are wrapped. If fn is
// nil, connections are wrapped with reactor.NewConn.
func WithSocketFactory(fn SocketFactory) Option {
	if fn == nil {
		fn = func(c net.Conn) reactor.Socket { return reactor.NewConn(c) }
	}

	return func(s *NetworkService) {
		s.newSocket = fn
	}
}

// WithAcceptCPU pins the accept loop to cpu. Negative values disable pinning.
func WithAcceptCPU(cpu int) Option {
	return func(s *NetworkService) {
		s.acceptCPU = cpu
	}
}

// WithDebugProbes registers the service's state probes on dp.
func WithDebugProbes(dp api.Debug) Option {
	return func(s *NetworkService) {
		s.probes = dp
	}
}

func withDefaults(opts []Option) []Option {
	return append([]Option{
		WithLogger(nil),
		WithMetrics(nil),
		WithSocketFactory(nil),
		WithAcceptCPU(-1),
		WithDebugProbes(control.NewDebugProbes()),
	}, opts...)
}
