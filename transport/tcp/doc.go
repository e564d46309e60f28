// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package tcp implements the connection acceptor: it binds an IPv4 listening
// socket and runs a serialized accept loop that hands every accepted
// connection to a registered callback.
package tcp
