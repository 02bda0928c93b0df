package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	chatConnectionsActive prometheus.Gauge
	chatMessagesTotal     *prometheus.CounterVec
	chatFanoutDropped     prometheus.Counter
	chatPushesTotal       *prometheus.CounterVec
	chatRequestsTotal     *prometheus.CounterVec
	chatRequestLatency    *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors for the chat core.
func RegisterMetrics() {
	registerOnce.Do(func() {
		chatConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Number of live websocket connections.",
		})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total number of chat messages persisted, by kind.",
		}, []string{"kind"})

		chatFanoutDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_fanout_dropped_total",
			Help: "Events dropped because a consumer could not keep up.",
		})

		chatPushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_pushes_total",
			Help: "Offline push notification attempts, by outcome.",
		}, []string{"outcome"})

		chatRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Total number of chat API requests, by status.",
		}, []string{"method", "route", "status"})

		chatRequestLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chat_request_latency_seconds",
			Help:    "Latency distribution for chat API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		prometheus.MustRegister(
			chatConnectionsActive,
			chatMessagesTotal,
			chatFanoutDropped,
			chatPushesTotal,
			chatRequestsTotal,
			chatRequestLatency,
		)
	})
}

// ChatConnectionsActive exposes the live connection gauge.
func ChatConnectionsActive() prometheus.Gauge {
	RegisterMetrics()
	return chatConnectionsActive
}

// ChatMessagesSent exposes the persisted message counter.
func ChatMessagesSent() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

// ChatFanoutDropped exposes the dropped fan-out counter.
func ChatFanoutDropped() prometheus.Counter {
	RegisterMetrics()
	return chatFanoutDropped
}

// ChatPushes exposes the offline push attempt counter.
func ChatPushes() *prometheus.CounterVec {
	RegisterMetrics()
	return chatPushesTotal
}

// ChatRequests exposes the request counter.
func ChatRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return chatRequestsTotal
}

// ChatRequestLatency exposes the request latency histogram.
func ChatRequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return chatRequestLatency
}
