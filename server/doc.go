// Package server implements the network service: it owns the buffer arena
// and the pre-paired receive/send operation pools, accepts connections
// through transport/tcp and runs one receive loop per connection.
package server
