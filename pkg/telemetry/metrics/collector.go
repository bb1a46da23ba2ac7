package metrics

import (
	"sync"
	"time"

	"globaleaks/tlsworker/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Relay directions.
const (
	DirectionUpstream   = "client_to_backend"
	DirectionDownstream = "backend_to_client"
)

// LifecycleStates lists the label values of the lifecycle_state gauge.
var LifecycleStates = []string{"running", "draining", "stopped"}

// otherReason replaces failure reasons once the cardinality limit is hit.
const otherReason = "other"

// Collector owns every worker metric and its registry.
//
// A nil *Collector and a collector built from a disabled configuration
// accept every call and record nothing.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	connections *ConnectionMetrics
	relay       *RelayMetrics
	process     *ProcessMetrics

	reasons *CardinalityLimiter
}

// NewCollector creates a collector registering into registry, or into a
// fresh registry when registry is nil. Empty namespaces default to
// config.DefaultMetricsNamespace.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:      cfg,
		registry:    registry,
		connections: NewConnectionMetrics(cfg, registry),
		relay:       NewRelayMetrics(cfg, registry),
		process:     NewProcessMetrics(cfg, registry),
		reasons:     NewCardinalityLimiter(64),
	}
}

func (c *Collector) enabled() bool {
	return c != nil && c.config.Enabled
}

func (c *Collector) reason(r string) string {
	if !c.reasons.Allow(r) {
		return otherReason
	}
	return r
}

// ConnectionAccepted records a new connection on listener and returns a
// function to call when the connection closes.
//
// Example:
//
//	done := collector.ConnectionAccepted("0.0.0.0:443")
//	defer done()
func (c *Collector) ConnectionAccepted(listener string) (done func()) {
	if !c.enabled() {
		return func() {}
	}

	start := time.Now()
	c.connections.accepted.WithLabelValues(listener).Inc()
	c.connections.active.Inc()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.connections.active.Dec()
			c.connections.duration.Observe(time.Since(start).Seconds())
		})
	}
}

// ConnectionRejected records a connection closed before relaying began.
// Reasons are expected to come from a small fixed set ("draining",
// "handshake", "backend").
func (c *Collector) ConnectionRejected(reason string) {
	if !c.enabled() {
		return
	}
	c.connections.rejected.WithLabelValues(c.reason(reason)).Inc()
}

// RecordHandshake records a successful handshake.
func (c *Collector) RecordHandshake(version string, duration time.Duration) {
	if !c.enabled() {
		return
	}
	c.relay.handshakeDuration.WithLabelValues(version).Observe(duration.Seconds())
}

// RecordHandshakeFailure records a failed handshake.
func (c *Collector) RecordHandshakeFailure(reason string) {
	if !c.enabled() {
		return
	}
	c.relay.handshakeFailures.WithLabelValues(c.reason(reason)).Inc()
}

// RecordBackendDialError records a failed backend connection attempt.
func (c *Collector) RecordBackendDialError() {
	if !c.enabled() {
		return
	}
	c.relay.dialErrors.Inc()
}

// AddRelayedBytes adds n bytes to the direction's counter.
func (c *Collector) AddRelayedBytes(direction string, n int64) {
	if !c.enabled() || n <= 0 {
		return
	}
	c.relay.relayedBytes.WithLabelValues(direction).Add(float64(n))
}

// SetLifecycleState marks state as current.
func (c *Collector) SetLifecycleState(state string) {
	if !c.enabled() {
		return
	}
	for _, s := range LifecycleStates {
		v := 0.0
		if s == state {
			v = 1
		}
		c.process.lifecycleState.WithLabelValues(s).Set(v)
	}
}

// SetCertificateExpiryDays records the remaining certificate lifetime.
func (c *Collector) SetCertificateExpiryDays(days float64) {
	if !c.enabled() {
		return
	}
	c.process.certExpiry.Set(days)
}

// SetListenersOpen records the number of accepting listeners.
func (c *Collector) SetListenersOpen(n int) {
	if !c.enabled() {
		return
	}
	c.process.listenersOpen.Set(float64(n))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// CardinalityLimiter caps the number of distinct label values a metric
// may take.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet is already known or still fits under the
// limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
