package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EventsTotal counts decoded stream events by kind.
	EventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repopulse_stream_events_total",
			Help: "Total stream events decoded, by event kind",
		},
		[]string{"kind"},
	)

	// DroppedTotal counts messages dropped at the decode boundary.
	DroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repopulse_stream_dropped_total",
			Help: "Total stream messages dropped, by reason (malformed, unknown_kind)",
		},
		[]string{"reason"},
	)

	// ReconnectsTotal counts reconnect attempts after a connection loss.
	ReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "repopulse_stream_reconnects_total",
			Help: "Total websocket reconnect attempts",
		},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(EventsTotal)
	prometheus.MustRegister(DroppedTotal)
	prometheus.MustRegister(ReconnectsTotal)
}
