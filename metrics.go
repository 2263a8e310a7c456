package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Relay metrics
	roomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_rooms_active",
			Help: "Rooms currently held by the registry",
		},
	)

	roomsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_rooms_evicted_total",
			Help: "Rooms evicted from the registry",
		},
		[]string{"rule"}, // "idle" or "max_age"
	)

	clientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_clients_connected",
			Help: "Open WebSocket connections",
		},
	)

	messagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_relayed_total",
			Help: "Payloads accepted for fan-out",
		},
		[]string{"kind"}, // "text" or "file"
	)

	deliveriesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_deliveries_dropped_total",
			Help: "Per-subscriber deliveries skipped because the queue was full or closed",
		},
	)

	payloadsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_payloads_rejected_total",
			Help: "Inbound frames rejected before relay",
		},
		[]string{"code"},
	)
)
