// Package control
// Author: momentics <momentics@gmail.com>
//
// Telemetry and debug introspection for hioload-net:
//   - statsd-backed metrics sink with a local snapshot registry
//   - named debug probes dumped on demand
package control
