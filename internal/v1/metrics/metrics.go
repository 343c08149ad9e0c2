package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the signaling hub.
//
// Naming convention: namespace_subsystem_name
// - namespace: signal_hub (application-level grouping)
// - subsystem: session, room, push, rate_limit, circuit_breaker, redis
// - name: specific metric (connections_active, events_total, etc.)

var (
	// ActiveConnections tracks the current number of open duplex channels.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signal_hub",
		Subsystem: "session",
		Name:      "connections_active",
		Help:      "Current number of open duplex channels",
	})

	// NamedSessions tracks the current number of sessions with a claimed name.
	NamedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signal_hub",
		Subsystem: "session",
		Name:      "named_active",
		Help:      "Current number of sessions with a claimed display name",
	})

	// ActiveRooms tracks the current number of rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signal_hub",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// FramesProcessed tracks the total number of inbound frames processed, by type and outcome.
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signal_hub",
		Subsystem: "session",
		Name:      "frames_total",
		Help:      "Total inbound frames processed",
	}, []string{"frame_type", "status"})

	// FrameProcessingDuration tracks time spent dispatching an inbound frame.
	FrameProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signal_hub",
		Subsystem: "session",
		Name:      "frame_processing_seconds",
		Help:      "Time spent dispatching an inbound frame",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
	}, []string{"frame_type"})

	// CircuitBreakerState tracks the current state of a named circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signal_hub",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks requests rejected by a circuit breaker.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signal_hub",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks sessions/requests rejected by a rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signal_hub",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests or frames that exceeded a rate limit",
	}, []string{"scope"})

	// PushDeliveries tracks outbound push gateway calls by outcome.
	PushDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signal_hub",
		Subsystem: "push",
		Name:      "deliveries_total",
		Help:      "Total push gateway delivery attempts",
	}, []string{"status"})

	// PushDeliveryDuration tracks push gateway call latency.
	PushDeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "signal_hub",
		Subsystem: "push",
		Name:      "delivery_duration_seconds",
		Help:      "Duration of push gateway delivery calls",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	// RedisOperationsTotal tracks the total number of bus operations.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signal_hub",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis bus operations",
	}, []string{"operation", "status"})
)

// IncConnection records a newly accepted duplex channel.
func IncConnection() {
	ActiveConnections.Inc()
}

// DecConnection records a closed duplex channel.
func DecConnection() {
	ActiveConnections.Dec()
}
