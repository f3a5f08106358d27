// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// OperationDuration tracks messaging service operation latency.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_operation_duration_seconds",
			Help:    "Messaging service operation duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation", "outcome"},
	)

	// MessagesSentTotal counts send attempts by outcome.
	MessagesSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_messages_sent_total",
			Help: "Total message send attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ConversationsTotal counts get-or-create calls by outcome
	// (created, existing, failed).
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_conversations_total",
			Help: "Total get-or-create conversation calls by outcome",
		},
		[]string{"outcome"},
	)

	// SchemaRepairsTotal counts schema repair attempts by result.
	SchemaRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_schema_repairs_total",
			Help: "Total schema repair attempts by result",
		},
		[]string{"result"},
	)

	// RealtimePublishFailures counts realtime fan-out failures.
	RealtimePublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_publish_failures_total",
			Help: "Total realtime publish failures",
		},
		[]string{"driver"},
	)

	// RealtimeDroppedEvents counts events dropped for slow subscribers.
	RealtimeDroppedEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_dropped_events_total",
			Help: "Total realtime events dropped because a subscriber buffer was full",
		},
		[]string{"driver"},
	)

	// RealtimeSubscriptionsActive tracks open realtime subscriptions.
	RealtimeSubscriptionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_subscriptions_active",
			Help: "Number of open realtime subscriptions",
		},
		[]string{"driver"},
	)

	// NATSConnected is 1 while the NATS connection is up.
	NATSConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nats_connected",
			Help: "Whether the NATS connection is currently established",
		},
	)

	// LiveConnectionsActive tracks open SSE and websocket connections.
	LiveConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "live_connections_active",
			Help: "Number of active live stream connections",
		},
		[]string{"transport"},
	)

	// NATSStreamMessages tracks messages in NATS stream.
	NATSStreamMessages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_messages",
			Help: "Number of messages in NATS stream",
		},
		[]string{"stream"},
	)

	// NATSStreamBytes tracks bytes in NATS stream.
	NATSStreamBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_bytes",
			Help: "Bytes in NATS stream",
		},
		[]string{"stream"},
	)
)

// RecordRequest records an HTTP request.
func RecordRequest(method, path, status string, durationSec float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSec)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}
