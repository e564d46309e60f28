// File: api/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Metrics sink contract shared by the service and the control layer.

package api

import "time"

// Metrics is a statsd-shaped telemetry sink.
type Metrics interface {
	Incr(bucket string)
	Decr(bucket string)
	Count(bucket string, n any)
	Gauge(bucket string, value any)
	Duration(bucket string, d time.Duration)
	Flush()
	WithPrefix(prefix string) Metrics
}
