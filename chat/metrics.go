package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry is the Prometheus registry used by this package. The
// admin portal exposes it on /metrics.
var MetricsRegistry = prometheus.NewRegistry()

var (
	metricConnections = promauto.With(MetricsRegistry).NewCounter(prometheus.CounterOpts{
		Name: "chat_connections_total",
		Help: "Total number of accepted TCP connections",
	})

	metricUsers = promauto.With(MetricsRegistry).NewGauge(prometheus.GaugeOpts{
		Name: "chat_registered_users",
		Help: "Number of currently registered users",
	})

	metricChannels = promauto.With(MetricsRegistry).NewGauge(prometheus.GaugeOpts{
		Name: "chat_channels",
		Help: "Number of channels created since startup",
	})

	metricCommands = promauto.With(MetricsRegistry).NewCounterVec(prometheus.CounterOpts{
		Name: "chat_commands_total",
		Help: "Total number of dispatched commands by name",
	}, []string{"command"})

	metricBroadcasts = promauto.With(MetricsRegistry).NewCounter(prometheus.CounterOpts{
		Name: "chat_broadcast_deliveries_total",
		Help: "Total number of per-member broadcast deliveries",
	})

	metricDroppedLines = promauto.With(MetricsRegistry).NewCounter(prometheus.CounterOpts{
		Name: "chat_rate_limited_lines_total",
		Help: "Total number of lines dropped by the per-connection rate limiter",
	})
)
