// Package metrics exposes the relay's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Driver Link Metrics
var (
	// DriverLinkState is 0=disconnected, 1=connecting, 2=connected
	DriverLinkState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_driver_link_state",
			Help: "Driver link state (0=disconnected, 1=connecting, 2=connected)",
		},
	)

	// DriverReconnects counts connection attempts that failed or dropped
	DriverReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_driver_reconnects_total",
			Help: "Total driver connection failures followed by a reconnect",
		},
	)

	// FramesReceived counts telemetry frames stored in the frame cache
	FramesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_frames_received_total",
			Help: "Total telemetry frames received from the driver",
		},
	)

	// CommandsSent tracks outbound driver commands by kind and status
	CommandsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_driver_commands_total",
			Help: "Driver commands by kind and status (sent/unavailable/error)",
		},
		[]string{"kind", "status"},
	)
)

// Client Registry Metrics
var (
	// ClientsConnected tracks currently registered client connections
	ClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_clients_connected",
			Help: "Currently registered client connections",
		},
	)

	// BroadcastFailures counts per-client delivery failures that evicted a client
	BroadcastFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_broadcast_failures_total",
			Help: "Total client deliveries that failed and removed the client",
		},
	)
)

// External Service Metrics
var (
	// InferenceRequests tracks inference calls by result (ok/fallback/breaker_open)
	InferenceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_inference_requests_total",
			Help: "Inference calls by result",
		},
		[]string{"result"},
	)

	// InferenceDuration tracks inference latency in seconds
	InferenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_inference_duration_seconds",
			Help:    "Inference call duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 300},
		},
	)

	// SpeechRequests tracks synthesis attempts by result (ok/retry/failed)
	SpeechRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_speech_requests_total",
			Help: "Speech synthesis calls by result",
		},
		[]string{"result"},
	)
)

// Autopilot Metrics
var (
	// AutopilotRunning is 1 while the autonomous loop is active
	AutopilotRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_autopilot_running",
			Help: "Whether the autonomous loop is running (1) or stopped (0)",
		},
	)

	// AutopilotIterations tracks loop iterations by outcome (no_frame/unchanged/planned)
	AutopilotIterations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_autopilot_iterations_total",
			Help: "Autonomous loop iterations by outcome",
		},
		[]string{"outcome"},
	)
)
