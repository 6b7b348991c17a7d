package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	ToolCalls          *prometheus.CounterVec
	ToolLatency        *prometheus.HistogramVec
	Sessions           *prometheus.CounterVec
	SessionEnds        *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
	Bookings           *prometheus.CounterVec
	Notifications      *prometheus.CounterVec
	SimulatorTurns     *prometheus.CounterVec
	ModelRequests      *prometheus.CounterVec
	ModelLatency       *prometheus.HistogramVec
	StorageErrors      *prometheus.CounterVec
	Errors             *prometheus.CounterVec
	WAOutgoingMessages *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = build(namespace)
		prometheus.MustRegister(metricsInstance.collectors()...)
	})
	return metricsInstance
}

// NewUnregistered builds a fresh set of collectors that is not attached to the
// default registry. Tests use it to avoid duplicate registration.
func NewUnregistered() *Metrics {
	return build("test")
}

func build(namespace string) *Metrics {
	return &Metrics{
		ToolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations requested by the model, by outcome.",
		}, []string{"tool", "outcome"}),
		ToolLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Latency distribution for tool execution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		Sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Calls started, by mode (live or phone).",
		}, []string{"mode"}),
		SessionEnds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_ends_total",
			Help:      "Calls ended, by reason.",
		}, []string{"reason"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live calls currently connected.",
		}),
		Bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bookings_total",
			Help:      "Booking attempts by room type and outcome.",
		}, []string{"room_type", "outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound guest notifications by channel and status.",
		}, []string{"channel", "status"}),
		SimulatorTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulator_turns_total",
			Help:      "Phone simulator turns by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ModelRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_requests_total",
			Help:      "Requests to the conversational model by kind and status.",
		}, []string{"kind", "status"}),
		ModelLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Latency distribution for conversational model calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		StorageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Storage port failures by collection and operation.",
		}, []string{"collection", "op"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total errors grouped by component.",
		}, []string{"component"}),
		WAOutgoingMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wa_outgoing_messages_total",
			Help:      "Total outgoing WhatsApp messages sent over the linked device.",
		}, []string{"type"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.ToolCalls,
		m.ToolLatency,
		m.Sessions,
		m.SessionEnds,
		m.ActiveSessions,
		m.Bookings,
		m.Notifications,
		m.SimulatorTurns,
		m.ModelRequests,
		m.ModelLatency,
		m.StorageErrors,
		m.Errors,
		m.WAOutgoingMessages,
	}
}
