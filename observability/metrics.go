package observability

import (
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatter_box"

// Metrics gathers the live counters of the gateway and the REST surface.
// Every instance owns its registry so tests never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	connections     prometheus.Gauge
	onlineUsers     prometheus.Gauge
	messagesSent    prometheus.Counter
	readReceipts    prometheus.Counter
	pushesDropped   prometheus.Counter
	eventsReceived  *prometheus.CounterVec
	eventErrors     *prometheus.CounterVec
	requestsHandled *prometheus.CounterVec

	// Mirrors of the collectors above, read by the Reporter without scraping.
	activeConnections int64
	sentMessages      uint64
	droppedPushes     uint64
	failedEvents      uint64
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of authenticated WebSocket connections.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Size of the last online-users broadcast.",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages persisted through the live channel.",
		}),
		readReceipts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_receipts_total",
			Help:      "Messages marked read through the live channel.",
		}),
		pushesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pushes_dropped_total",
			Help:      "Outbound events discarded for slow or closed connections.",
		}),
		eventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound WebSocket events by type.",
		}, []string{"type"}),
		eventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_errors_total",
			Help:      "Inbound WebSocket events answered with an error, by type.",
		}, []string{"type"}),
		requestsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "REST requests by route and status code.",
		}, []string{"route", "code"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections,
		m.onlineUsers,
		m.messagesSent,
		m.readReceipts,
		m.pushesDropped,
		m.eventsReceived,
		m.eventErrors,
		m.requestsHandled,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ConnectionOpened() {
	m.connections.Inc()
	atomic.AddInt64(&m.activeConnections, 1)
}

func (m *Metrics) ConnectionClosed() {
	m.connections.Dec()
	atomic.AddInt64(&m.activeConnections, -1)
}

func (m *Metrics) SetOnlineUsers(n int) {
	m.onlineUsers.Set(float64(n))
}

func (m *Metrics) IncrMessageSent() {
	m.messagesSent.Inc()
	atomic.AddUint64(&m.sentMessages, 1)
}

func (m *Metrics) IncrReadReceipt() {
	m.readReceipts.Inc()
}

func (m *Metrics) IncrPushDropped() {
	m.pushesDropped.Inc()
	atomic.AddUint64(&m.droppedPushes, 1)
}

func (m *Metrics) IncrEventReceived(eventType string) {
	m.eventsReceived.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncrEventError(eventType string) {
	m.eventErrors.WithLabelValues(eventType).Inc()
	atomic.AddUint64(&m.failedEvents, 1)
}

func (m *Metrics) ObserveRequest(route string, code int) {
	m.requestsHandled.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Stats is a point in time copy of the counters the Reporter logs.
type Stats struct {
	ActiveConnections int64
	MessagesSent      uint64
	PushesDropped     uint64
	EventErrors       uint64
}

func (m *Metrics) Snapshot() Stats {
	return Stats{
		ActiveConnections: atomic.LoadInt64(&m.activeConnections),
		MessagesSent:      atomic.LoadUint64(&m.sentMessages),
		PushesDropped:     atomic.LoadUint64(&m.droppedPushes),
		EventErrors:       atomic.LoadUint64(&m.failedEvents),
	}
}
