package metrics

import (
	"globaleaks/tlsworker/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ConnectionMetrics tracks accepted client connections.
//
// Metrics:
//   - <ns>_connections_accepted_total: accepted connections by listener
//   - <ns>_connections_rejected_total: connections closed before relaying, by reason
//   - <ns>_connections_active: connections currently open
//   - <ns>_connection_duration_seconds: lifetime of a connection
type ConnectionMetrics struct {
	accepted *prometheus.CounterVec
	rejected *prometheus.CounterVec
	active   prometheus.Gauge
	duration prometheus.Histogram
}

// NewConnectionMetrics creates and registers connection metrics.
func NewConnectionMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ConnectionMetrics {
	cm := &ConnectionMetrics{
		accepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "connections_accepted_total",
				Help:      "Total number of accepted client connections",
			},
			[]string{"listener"},
		),

		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "connections_rejected_total",
				Help:      "Connections closed before relaying started, by reason",
			},
			[]string{"reason"},
		),

		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "connections_active",
				Help:      "Number of open client connections",
			},
		),

		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "connection_duration_seconds",
				Help:      "Lifetime of client connections in seconds",
				Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 1800},
			},
		),
	}

	registry.MustRegister(cm.accepted, cm.rejected, cm.active, cm.duration)
	return cm
}

// RelayMetrics tracks the TLS handshake and the byte relay.
//
// Metrics:
//   - <ns>_handshake_duration_seconds: successful handshake latency
//   - <ns>_handshake_failures_total: failed handshakes by reason
//   - <ns>_backend_dial_errors_total: failed connections to the backend
//   - <ns>_relayed_bytes_total: bytes copied, by direction
type RelayMetrics struct {
	handshakeDuration *prometheus.HistogramVec
	handshakeFailures *prometheus.CounterVec
	dialErrors        prometheus.Counter
	relayedBytes      *prometheus.CounterVec
}

// NewRelayMetrics creates and registers relay metrics.
func NewRelayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RelayMetrics {
	rm := &RelayMetrics{
		handshakeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "handshake_duration_seconds",
				Help:      "Duration of successful TLS handshakes in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
			},
			[]string{"version"},
		),

		handshakeFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "handshake_failures_total",
				Help:      "Total number of failed TLS handshakes by reason",
			},
			[]string{"reason"},
		),

		dialErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "backend_dial_errors_total",
				Help:      "Total number of failed connections to the backend",
			},
		),

		relayedBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "relayed_bytes_total",
				Help:      "Total bytes relayed, by direction",
			},
			[]string{"direction"},
		),
	}

	registry.MustRegister(rm.handshakeDuration, rm.handshakeFailures, rm.dialErrors, rm.relayedBytes)
	return rm
}

// ProcessMetrics tracks worker-wide state.
//
// Metrics:
//   - <ns>_lifecycle_state: 1 for the current lifecycle state, 0 otherwise
//   - <ns>_certificate_expiry_days: days until the served certificate expires
//   - <ns>_listeners_open: listening sockets currently accepting
type ProcessMetrics struct {
	lifecycleState *prometheus.GaugeVec
	certExpiry     prometheus.Gauge
	listenersOpen  prometheus.Gauge
}

// NewProcessMetrics creates and registers process metrics.
func NewProcessMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProcessMetrics {
	pm := &ProcessMetrics{
		lifecycleState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "lifecycle_state",
				Help:      "Current lifecycle state (1=current, 0=not current)",
			},
			[]string{"state"},
		),

		certExpiry: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "certificate_expiry_days",
				Help:      "Days until the served certificate expires",
			},
		),

		listenersOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Name:      "listeners_open",
				Help:      "Number of listening sockets accepting connections",
			},
		),
	}

	registry.MustRegister(pm.lifecycleState, pm.certExpiry, pm.listenersOpen)
	return pm
}
