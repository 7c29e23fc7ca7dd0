package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "liveclass"

// Metrics holds the server collectors. A nil *Metrics is valid and records
// nothing, so components can be built without instrumentation in tests.
type Metrics struct {
	registry *prometheus.Registry

	connections    prometheus.Gauge
	events         *prometheus.CounterVec
	decodeErrors   prometheus.Counter
	rateLimited    prometheus.Counter
	admissions     *prometheus.CounterVec
	relayDrops     *prometheus.CounterVec
	framesDropped  prometheus.Counter
	chatMessages   prometheus.Counter
	persistErrors  prometheus.Counter
	handlerLatency prometheus.Histogram
}

// New registers every collector on a private registry together with the
// Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Open WebSocket connections.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound events handled by the hub.",
		}, []string{"event"}),
		decodeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound frames rejected by the decoder.",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Inbound events rejected by the rate limiter.",
		}),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admissions_total",
			Help:      "Admission decisions by outcome.",
		}, []string{"outcome"}),
		relayDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_drops_total",
			Help:      "Signaling messages dropped because the target was not live.",
		}, []string{"kind"}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backpressure_disconnects_total",
			Help:      "Connections closed because their outbound queue was full.",
		}),
		chatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_messages_total",
			Help:      "Chat messages accepted.",
		}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_persist_failures_total",
			Help:      "Failed writes of the chat log to durable storage.",
		}),
		handlerLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handle_seconds",
			Help:      "Time spent handling one inbound event on the hub.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.events,
		m.decodeErrors,
		m.rateLimited,
		m.admissions,
		m.relayDrops,
		m.framesDropped,
		m.chatMessages,
		m.persistErrors,
		m.handlerLatency,
	)
	return m
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) Event(name string, seconds float64) {
	if m != nil {
		m.events.WithLabelValues(name).Inc()
		m.handlerLatency.Observe(seconds)
	}
}

func (m *Metrics) DecodeError() {
	if m != nil {
		m.decodeErrors.Inc()
	}
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

// Admission records an admission outcome: approved, denied, rejected or
// reconnected.
func (m *Metrics) Admission(outcome string) {
	if m != nil {
		m.admissions.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) RelayDrop(kind string) {
	if m != nil {
		m.relayDrops.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) BackpressureDisconnect() {
	if m != nil {
		m.framesDropped.Inc()
	}
}

func (m *Metrics) ChatMessage() {
	if m != nil {
		m.chatMessages.Inc()
	}
}

func (m *Metrics) PersistFailure() {
	if m != nil {
		m.persistErrors.Inc()
	}
}
