// Package metrics provides Prometheus instrumentation for the realtime
// server. It exposes gauges for connection, presence, queue, and pairing
// counts, plus counters for relay throughput and report outcomes.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ConnectionsActive tracks the current number of live WebSocket connections.
	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zom_connections_active",
		Help: "Current number of active WebSocket connections",
	})

	// OnlineIdentities tracks the number of registered identities online.
	OnlineIdentities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zom_online_identities",
		Help: "Current number of registered identities online",
	})

	// QueueWaiting tracks the number of connections in the stranger queue.
	QueueWaiting = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zom_queue_waiting",
		Help: "Current number of connections waiting in the stranger queue",
	})

	// ActivePairs tracks the number of active stranger pairings.
	ActivePairs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zom_active_pairs",
		Help: "Current number of active stranger pairings",
	})

	// MatchesTotal counts pairings made since startup.
	MatchesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zom_matches_total",
		Help: "Total number of stranger pairings made",
	})

	// EventsRelayed counts delivered relay events, labeled by event name.
	EventsRelayed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zom_events_relayed_total",
		Help: "Total number of relay events delivered",
	}, []string{"event"})

	// RelaysDropped counts relay events dropped because the target was gone,
	// labeled by event name.
	RelaysDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zom_relays_dropped_total",
		Help: "Total number of relay events dropped for a missing target",
	}, []string{"event"})

	// ReportsTotal counts moderation reports by outcome: "success", "error",
	// or "rejected".
	ReportsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zom_reports_total",
		Help: "Total number of moderation reports processed",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(
		ConnectionsActive,
		OnlineIdentities,
		QueueWaiting,
		ActivePairs,
		MatchesTotal,
		EventsRelayed,
		RelaysDropped,
		ReportsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
