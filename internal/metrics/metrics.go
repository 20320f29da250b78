package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Shared collectors for the bot. Registered on the default registry so
// promhttp.Handler() picks them up.
var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpsbot_commands_total",
		Help: "Chat commands dispatched, by command and outcome.",
	}, []string{"command", "outcome"})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vpsbot_transitions_total",
		Help: "Lifecycle state transitions applied, by resulting status.",
	}, []string{"status"})

	RecordsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vpsbot_vps_records",
		Help: "Number of VPS records in the registry.",
	})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vpsbot_delivery_failures_total",
		Help: "Replies or notifications that could not reach the transport.",
	})
)
