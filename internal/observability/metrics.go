package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathgenie_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mathgenie_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// StorageFallbacks counts operations served by the local store because
	// the primary database was unavailable.
	StorageFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathgenie_storage_fallbacks_total",
		Help: "Total number of operations that fell back to local storage",
	}, []string{"operation"})

	// GenerationRequests counts AI generation requests by content type and outcome.
	GenerationRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathgenie_generation_requests_total",
		Help: "Total number of AI generation requests by content type and outcome",
	}, []string{"content_type", "outcome"})

	// GenerationLatency records upstream AI generation latency by content type.
	GenerationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mathgenie_generation_latency_seconds",
		Help:    "AI generation latency in seconds",
		Buckets: []float64{1, 5, 10, 20, 40, 60, 90, 120},
	}, []string{"content_type"})

	// ThumbnailCaptures counts thumbnail capture attempts by outcome.
	ThumbnailCaptures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathgenie_thumbnail_captures_total",
		Help: "Total number of thumbnail capture attempts by outcome",
	}, []string{"outcome"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mathgenie_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathgenie_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mathgenie_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}
