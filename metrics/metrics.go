// Package metrics exposes the server's tick-loop instrumentation as
// Prometheus collectors, registered against a caller-supplied registry
// so multiple servers in one process don't collide on metric names.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Server holds the collectors the tick loop updates every iteration.
type Server struct {
	ConnectedClients  prometheus.Gauge
	SnapshotsSent     prometheus.Counter
	TicksRun          prometheus.Counter
	CollisionsResolved prometheus.Counter
	PlayoutDepth      prometheus.Gauge
	ReconciliationCorrections prometheus.Counter
}

// NewServer creates and registers the server's collectors under reg.
// Passing prometheus.NewRegistry() keeps metrics isolated per server
// instance, useful for tests and for running multiple servers in one
// binary; passing prometheus.DefaultRegisterer matches typical
// single-process deployments.
func NewServer(reg prometheus.Registerer) *Server {
	s := &Server{
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netplay",
			Subsystem: "server",
			Name:      "connected_clients",
			Help:      "Number of clients currently connected.",
		}),
		SnapshotsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netplay",
			Subsystem: "server",
			Name:      "snapshots_sent_total",
			Help:      "Total UPDATE_GAME_OBJECT snapshots broadcast.",
		}),
		TicksRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netplay",
			Subsystem: "server",
			Name:      "ticks_total",
			Help:      "Total fixed-step simulation ticks run.",
		}),
		CollisionsResolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netplay",
			Subsystem: "server",
			Name:      "collisions_resolved_total",
			Help:      "Total collision pairs passed to the resolver.",
		}),
		PlayoutDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netplay",
			Subsystem: "server",
			Name:      "playout_buffer_depth",
			Help:      "Summed depth of all per-client playout buffers after the last drain.",
		}),
		ReconciliationCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netplay",
			Subsystem: "client",
			Name:      "reconciliation_corrections_total",
			Help:      "Total reconciliations that required a visible position correction.",
		}),
	}

	reg.MustRegister(
		s.ConnectedClients,
		s.SnapshotsSent,
		s.TicksRun,
		s.CollisionsResolved,
		s.PlayoutDepth,
		s.ReconciliationCorrections,
	)
	return s
}
