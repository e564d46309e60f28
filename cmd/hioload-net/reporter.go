package main

import (
	"context"
	"time"

	"github.com/lthibault/log"

	"github.com/momentics/hioload-net/control"
	"github.com/momentics/hioload-net/server"
	"github.com/momentics/hioload-net/session"
)

// reporter periodically publishes service stats as gauges and log lines.
type reporter struct {
	log      log.Logger
	svc      *server.NetworkService
	sessions *session.Registry
	metrics  *control.Registry
	probes   *control.DebugProbes
	interval time.Duration
}

func (r *reporter) String() string { return "reporter" }

// Serve satisfies suture.Service.
func (r *reporter) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.report()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (r *reporter) report() {
	st := r.svc.Stats()

	r.metrics.Gauge("connected", st.Connected)
	r.metrics.Gauge("sessions", r.sessions.Len())
	r.metrics.Gauge("slots.idle", st.Idle)
	r.metrics.Gauge("arena.in_use", st.Arena.InUse)
	r.metrics.Flush()

	r.log.With(log.F{
		"connected": st.Connected,
		"accepted":  st.Accepted,
		"rejected":  st.Rejected,
		"idle":      st.Idle,
		"sessions":  r.sessions.Len(),
	}).Info("stats")

	r.log.With(log.F{
		"probes":  r.probes.DumpState(),
		"metrics": r.metrics.Snapshot(),
	}).Debug("state dump")
}
