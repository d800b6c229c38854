package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reject reasons recorded on ReportsRejected.
const (
	RejectReasonValidation = "validation"
	RejectReasonPost       = "post_not_found"
	RejectReasonUser       = "user_not_found"
)

var (
	// ReportsCreated counts reports persisted by intake.
	ReportsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mybuddy_reports_created_total",
		Help: "Total number of reports accepted by intake",
	})

	// ReportsRejected counts intake attempts refused with a client error, by reason.
	ReportsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mybuddy_reports_rejected_total",
		Help: "Total number of reports rejected by intake",
	}, []string{"reason"})

	// ReportsDeleted counts report rows actually removed.
	ReportsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mybuddy_reports_deleted_total",
		Help: "Total number of reports removed",
	})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mybuddy_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mybuddy_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnections is the gauge of active WebSocket connections.
	WebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mybuddy_websocket_connections",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mybuddy_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// ObserveQuery records the latency of a database query that started at start.
func ObserveQuery(operation, table string, start time.Time) {
	if table == "" {
		table = "unknown"
	}
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}
