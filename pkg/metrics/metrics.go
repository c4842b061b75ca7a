package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of registered websocket clients",
		},
	)

	// result: delivered, offline, dropped, forwarded
	DeliveryPushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_pushes_total",
			Help: "Realtime delivery attempts by event and result",
		},
		[]string{"event", "result"},
	)

	MessagingOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_operations_total",
			Help: "Messaging service operations by outcome",
		},
		[]string{"operation", "outcome"},
	)
)
