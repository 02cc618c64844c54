package observability

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitpay_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// PresenceTransitions counts presence state transitions by target status.
	PresenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitpay_presence_transitions_total",
		Help: "Total presence record writes by resulting status",
	}, []string{"status"})

	// PresenceHeartbeats counts heartbeat re-assertions.
	PresenceHeartbeats = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitpay_presence_heartbeats_total",
		Help: "Total presence heartbeat refreshes",
	})

	// PresenceReaped counts users forced offline by the stale-presence reaper.
	PresenceReaped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "splitpay_presence_reaped_total",
		Help: "Total users marked offline by the stale-presence reaper",
	})

	// ActiveWebSockets is the gauge of currently open websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "splitpay_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to full send buffers.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitpay_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub"})

	// FriendOperations counts coordinator operations by type and outcome.
	FriendOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "splitpay_friend_operations_total",
		Help: "Total friendship coordinator operations by operation and outcome",
	}, []string{"operation", "outcome"})
)

// InitMetrics creates the fiberprometheus middleware for HTTP metrics.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware wraps the fiberprometheus middleware as a Fiber handler.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
