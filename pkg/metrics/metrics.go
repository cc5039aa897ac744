package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lockstep"

type Metrics struct {
	registry *prometheus.Registry

	RoomsActive       prometheus.Gauge
	Connections       prometheus.Gauge
	MessagesSent      *prometheus.CounterVec
	MessagesDropped   prometheus.Counter
	MessagesReceived  *prometheus.CounterVec
	BarriersStarted   prometheus.Counter
	BarriersSatisfied prometheus.Counter
}

// New builds a fresh registry so that several servers (and tests) can live in one process.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Number of rooms currently held by the registry.",
		}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_connections",
			Help:      "Number of open websocket connections.",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_sent_total",
			Help:      "Outbound websocket messages queued, by type.",
		}, []string{"type"}),
		MessagesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_dropped_total",
			Help:      "Outbound websocket messages dropped because the send queue was full.",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_received_total",
			Help:      "Inbound websocket messages, by type.",
		}, []string{"type"}),
		BarriersStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barriers_started_total",
			Help:      "Readiness generations started.",
		}),
		BarriersSatisfied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barriers_satisfied_total",
			Help:      "Readiness generations that reached satisfaction.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RoomsActive,
		m.Connections,
		m.MessagesSent,
		m.MessagesDropped,
		m.MessagesReceived,
		m.BarriersStarted,
		m.BarriersSatisfied,
	)

	return m
}

// Handler exposes the registry at /metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
