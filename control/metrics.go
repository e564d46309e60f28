// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Metrics sinks: a statsd client, a no-op sink, and a Registry that keeps a
// local snapshot of everything it forwards.

package control

import (
	"sync"
	"time"

	"github.com/lthibault/log"
	"gopkg.in/alexcesaro/statsd.v2"

	"github.com/momentics/hioload-net/api"
)

// Statsd forwards metrics to a statsd daemon over UDP.
type Statsd struct{ *statsd.Client }

// NewStatsd returns a statsd sink for addr. An empty addr yields a muted
// client. If the client cannot be set up, a no-op sink is returned.
func NewStatsd(addr string, logger log.Logger) api.Metrics {
	m, err := statsd.New(
		statsd.Address(addr),
		statsd.Mute(addr == ""),
		statsd.ErrorHandler(func(err error) {
			logger.WithError(err).
				WithField("statsd", addr).
				Warn("failed to send metrics")
		}),
		statsd.Prefix("hioload"),
		statsd.FlushPeriod(time.Millisecond*250))
	if err != nil {
		logger.WithError(err).
			WithField("statsd", addr).
			Warn("setup failed for statsd metrics")
		return Nop()
	}

	return Statsd{m}
}

func (m Statsd) Incr(bucket string) {
	m.Client.Count(bucket, 1)
}

func (m Statsd) Decr(bucket string) {
	m.Client.Count(bucket, -1)
}

func (m Statsd) Duration(bucket string, d time.Duration) {
	m.Client.Timing(bucket, d.Milliseconds())
}

func (m Statsd) WithPrefix(prefix string) api.Metrics {
	return Statsd{
		Client: m.Client.Clone(statsd.Prefix(prefix)),
	}
}

// Nop returns a sink that discards everything.
func Nop() api.Metrics { return nopMetrics{} }

type nopMetrics struct{}

func (nopMetrics) Incr(string)                    {}
func (nopMetrics) Decr(string)                    {}
func (nopMetrics) Count(string, any)              {}
func (nopMetrics) Gauge(string, any)              {}
func (nopMetrics) Duration(string, time.Duration) {}
func (nopMetrics) Flush()                         {}
func (nopMetrics) WithPrefix(string) api.Metrics  { return nopMetrics{} }

// Registry records counters and gauges locally and forwards them to a
// backing sink. Prefixed children share the parent's snapshot.
type Registry struct {
	prefix string
	next   api.Metrics
	store  *store
}

type store struct {
	mu       sync.RWMutex
	counters map[string]int64
	gauges   map[string]any
	updated  time.Time
}

// NewRegistry wraps next. If next is nil, metrics are only kept locally.
func NewRegistry(next api.Metrics) *Registry {
	if next == nil {
		next = Nop()
	}

	return &Registry{
		next: next,
		store: &store{
			counters: make(map[string]int64),
			gauges:   make(map[string]any),
		},
	}
}

func (r *Registry) key(bucket string) string {
	if r.prefix == "" {
		return bucket
	}
	return r.prefix + "." + bucket
}

func (r *Registry) add(bucket string, n int64) {
	r.store.mu.Lock()
	r.store.counters[r.key(bucket)] += n
	r.store.updated = time.Now()
	r.store.mu.Unlock()
}

func (r *Registry) Incr(bucket string) {
	r.add(bucket, 1)
	r.next.Incr(bucket)
}

func (r *Registry) Decr(bucket string) {
	r.add(bucket, -1)
	r.next.Decr(bucket)
}

// Count adds n to bucket. Non-integer values are forwarded but not recorded.
func (r *Registry) Count(bucket string, n any) {
	if v, ok := toInt64(n); ok {
		r.add(bucket, v)
	}
	r.next.Count(bucket, n)
}

func (r *Registry) set(bucket string, value any) {
	r.store.mu.Lock()
	r.store.gauges[r.key(bucket)] = value
	r.store.updated = time.Now()
	r.store.mu.Unlock()
}

func (r *Registry) Gauge(bucket string, value any) {
	r.set(bucket, value)
	r.next.Gauge(bucket, value)
}

// Duration keeps the latest value per bucket.
func (r *Registry) Duration(bucket string, d time.Duration) {
	r.set(bucket, d)
	r.next.Duration(bucket, d)
}

func (r *Registry) Flush() { r.next.Flush() }

func (r *Registry) WithPrefix(prefix string) api.Metrics {
	return &Registry{
		prefix: r.key(prefix),
		next:   r.next.WithPrefix(prefix),
		store:  r.store,
	}
}

// Snapshot returns a copy of every recorded counter and gauge.
func (r *Registry) Snapshot() map[string]any {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make(map[string]any, len(r.store.counters)+len(r.store.gauges))
	for k, v := range r.store.counters {
		out[k] = v
	}
	for k, v := range r.store.gauges {
		out[k] = v
	}
	return out
}

// Updated reports when the registry last changed.
func (r *Registry) Updated() time.Time {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.store.updated
}

func toInt64(n any) (int64, bool) {
	switch v := n.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case uint64:
		return int64(v), true
	}
	return 0, false
}
