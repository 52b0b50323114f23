package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the relay, served on /metrics. Registered once at
// process start against the default registry.
var (
	metricConnections = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "smartmotor",
		Subsystem: "relay",
		Name:      "connections",
		Help:      "Currently connected clients per channel.",
	}, []string{"channel"})

	metricPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartmotor",
		Subsystem: "relay",
		Name:      "publishes_total",
		Help:      "Valid publishes received per channel.",
	}, []string{"channel"})

	metricInvalidPublishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartmotor",
		Subsystem: "relay",
		Name:      "invalid_publishes_total",
		Help:      "Publishes dropped for failing schema validation.",
	}, []string{"channel"})

	metricBroadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartmotor",
		Subsystem: "relay",
		Name:      "broadcasts_total",
		Help:      "Envelopes fanned out to clients per channel.",
	}, []string{"channel"})

	metricBroadcastBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartmotor",
		Subsystem: "relay",
		Name:      "broadcast_bytes_total",
		Help:      "Envelope bytes fanned out to clients per channel.",
	}, []string{"channel"})

	metricDroppedClients = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "smartmotor",
		Subsystem: "relay",
		Name:      "dropped_clients_total",
		Help:      "Clients disconnected because their send queue stayed full.",
	}, []string{"channel"})
)
