// Package metrics exposes prometheus instrumentation for the session controller.
//
// All methods are safe to call on a nil *Metrics, so components can run
// uninstrumented in tests and tools.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "chatanon").
	Namespace string

	// Registry is where collectors are registered.
	// Default: a fresh prometheus.Registry.
	Registry *prometheus.Registry
}

// Option configures Metrics.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithRegistry sets the registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the transport and session collectors.
type Metrics struct {
	registry *prometheus.Registry

	connectAttempts     prometheus.Counter
	reconnectsScheduled prometheus.Counter
	reconnectDelay      prometheus.Histogram
	connectionState     *prometheus.GaugeVec
	framesSent          *prometheus.CounterVec
	framesReceived      *prometheus.CounterVec
	framesRejected      *prometheus.CounterVec
	sendsDropped        prometheus.Counter
	onlinePolls         *prometheus.CounterVec
}

// New creates and registers the collectors.
func New(opts ...Option) *Metrics {
	cfg := Config{Namespace: "chatanon"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	factory := promauto.With(cfg.Registry)
	return &Metrics{
		registry: cfg.Registry,
		connectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "transport",
			Name:      "connect_attempts_total",
			Help:      "Socket dials started, including automatic reconnects.",
		}),
		reconnectsScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "transport",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect timers armed after an abnormal close.",
		}),
		reconnectDelay: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: "transport",
			Name:      "reconnect_delay_seconds",
			Help:      "Delay of each scheduled reconnect.",
			Buckets:   []float64{1, 3, 6, 9, 12, 15, 30},
		}),
		connectionState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: "transport",
			Name:      "connection_state",
			Help:      "1 for the current connection state, 0 for the others.",
		}, []string{"state"}),
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "frames_sent_total",
			Help:      "Outbound frames handed to the transport.",
		}, []string{"type"}),
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Inbound frames applied to the session.",
		}, []string{"type"}),
		framesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "session",
			Name:      "frames_rejected_total",
			Help:      "Inbound payloads discarded by the codec.",
		}, []string{"reason"}),
		sendsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "transport",
			Name:      "sends_dropped_total",
			Help:      "Frames dropped because the socket was not open.",
		}),
		onlinePolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "presence",
			Name:      "polls_total",
			Help:      "Online counter fetches by outcome.",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ConnectAttempt counts a dial.
func (m *Metrics) ConnectAttempt() {
	if m == nil {
		return
	}
	m.connectAttempts.Inc()
}

// ReconnectScheduled counts a scheduled retry and observes its delay.
func (m *Metrics) ReconnectScheduled(delay time.Duration) {
	if m == nil {
		return
	}
	m.reconnectsScheduled.Inc()
	m.reconnectDelay.Observe(delay.Seconds())
}

// ConnectionState marks state as the current one among all.
func (m *Metrics) ConnectionState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.connectionState.WithLabelValues(s).Set(v)
	}
}

// FrameSent counts an outbound frame by type.
func (m *Metrics) FrameSent(frameType string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(frameType).Inc()
}

// FrameReceived counts a decoded inbound frame by type.
func (m *Metrics) FrameReceived(frameType string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(frameType).Inc()
}

// FrameRejected counts an inbound frame that failed to decode.
func (m *Metrics) FrameRejected(reason string) {
	if m == nil {
		return
	}
	m.framesRejected.WithLabelValues(reason).Inc()
}

// SendDropped counts a send attempted while the socket was not open.
func (m *Metrics) SendDropped() {
	if m == nil {
		return
	}
	m.sendsDropped.Inc()
}

// OnlinePoll counts an online counter fetch by outcome.
func (m *Metrics) OnlinePoll(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.onlinePolls.WithLabelValues(outcome).Inc()
}
