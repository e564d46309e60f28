// Package session provides the default per-connection token driven by
// server.NetworkService and a sharded registry of live sessions.
package session
