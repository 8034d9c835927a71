// Package metrics provides Prometheus metrics for the auditdeck dashboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector exported by auditdeck.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Live list synchronization
	streamEventsApplied *prometheus.CounterVec
	streamErrors        *prometheus.CounterVec
	streamReconnects    *prometheus.CounterVec
	streamConnected     *prometheus.GaugeVec
	snapshotSize        *prometheus.GaugeVec
	applyLatency        *prometheus.HistogramVec

	// Ordered pipeline between the stream reader and the applier
	queueDepth    *prometheus.GaugeVec
	queueEnqueued *prometheus.CounterVec
	queueDequeued *prometheus.CounterVec
	queueRejected *prometheus.CounterVec

	// Remote collection client
	remoteRequests        *prometheus.CounterVec
	remoteRequestDuration *prometheus.HistogramVec

	// Review flow
	reviewActions *prometheus.CounterVec
	reviewOpen    prometheus.Gauge

	// Summary cards
	summaryCount *prometheus.GaugeVec

	// Dashboard HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "auditdeck",
		subsystem:        "dashboard",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.streamEventsApplied = m.counterVec("stream_events_applied_total",
		"Stream events applied to a live list, by collection and event kind", "collection", "kind")
	m.streamErrors = m.counterVec("stream_errors_total",
		"Stream errors by collection and reason (remote, malformed, connection)", "collection", "reason")
	m.streamReconnects = m.counterVec("stream_reconnects_total",
		"Stream reconnect attempts by collection", "collection")
	m.streamConnected = m.gaugeVec("stream_connected",
		"1 while the stream for a collection is connected", "collection")
	m.snapshotSize = m.gaugeVec("snapshot_size",
		"Number of entities in the live snapshot", "collection")
	m.applyLatency = m.histogramVec("stream_apply_latency_milliseconds",
		"Time spent validating and applying one stream event", "collection")

	m.queueDepth = m.gaugeVec("queue_depth", "Frames waiting to be applied", "queue")
	m.queueEnqueued = m.counterVec("queue_enqueued_total", "Frames enqueued", "queue")
	m.queueDequeued = m.counterVec("queue_dequeued_total", "Frames dequeued", "queue")
	m.queueRejected = m.counterVec("queue_rejected_total", "Frames rejected by reason", "queue", "reason")

	m.remoteRequests = m.counterVec("remote_requests_total",
		"Remote API calls by operation and outcome", "operation", "outcome")
	m.remoteRequestDuration = m.histogramVec("remote_request_duration_milliseconds",
		"Remote API call latency in milliseconds", "operation", "outcome")

	m.reviewActions = m.counterVec("review_actions_total",
		"Review dialog actions by action and outcome", "action", "outcome")
	m.reviewOpen = m.gauge("review_sessions_open", "Open review sessions")

	m.summaryCount = m.gaugeVec("summary_count", "Latest summary card counts", "card")

	m.httpRequests = m.counterVec("http_requests_total",
		"Dashboard HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"Dashboard HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorsByEndpoint = m.counterVec("http_errors_total",
		"Dashboard HTTP errors by endpoint, method and error type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// RecordStreamEvent increments the applied events counter for a collection.
func RecordStreamEvent(collection, kind string) {
	globalManager.streamEventsApplied.WithLabelValues(collection, kind).Inc()
}

// RecordStreamError counts a stream error for a collection.
func RecordStreamError(collection, reason string) {
	globalManager.streamErrors.WithLabelValues(collection, reason).Inc()
}

// RecordStreamReconnect counts a reconnect attempt.
func RecordStreamReconnect(collection string) {
	globalManager.streamReconnects.WithLabelValues(collection).Inc()
}

// SetStreamConnected flips the connection gauge for a collection.
func SetStreamConnected(collection string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	globalManager.streamConnected.WithLabelValues(collection).Set(v)
}

// UpdateSnapshotSize sets the live snapshot size for a collection.
func UpdateSnapshotSize(collection string, size int) {
	globalManager.snapshotSize.WithLabelValues(collection).Set(float64(size))
}

// RecordApplyLatency records how long one event took to validate and apply.
func RecordApplyLatency(collection string, latencyMs float64) {
	globalManager.applyLatency.WithLabelValues(collection).Observe(latencyMs)
}

// UpdateQueueDepth sets the number of pending frames in a queue.
func UpdateQueueDepth(queue string, depth int) {
	globalManager.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// RecordQueueEnqueue counts an enqueued frame.
func RecordQueueEnqueue(queue string) {
	globalManager.queueEnqueued.WithLabelValues(queue).Inc()
}

// RecordQueueDequeue counts a dequeued frame.
func RecordQueueDequeue(queue string) {
	globalManager.queueDequeued.WithLabelValues(queue).Inc()
}

// RecordQueueRejected counts a frame that could not be enqueued.
func RecordQueueRejected(queue, reason string) {
	globalManager.queueRejected.WithLabelValues(queue, reason).Inc()
}

// RecordRemoteRequest records one remote API call.
func RecordRemoteRequest(operation, outcome string, latencyMs float64) {
	globalManager.remoteRequests.WithLabelValues(operation, outcome).Inc()
	globalManager.remoteRequestDuration.WithLabelValues(operation, outcome).Observe(latencyMs)
}

// RecordReviewAction records a verify/dismiss outcome.
func RecordReviewAction(action, outcome string) {
	globalManager.reviewActions.WithLabelValues(action, outcome).Inc()
}

// UpdateReviewSessions sets the number of open review sessions.
func UpdateReviewSessions(n int) {
	globalManager.reviewOpen.Set(float64(n))
}

// UpdateSummaryCount sets a summary card value.
func UpdateSummaryCount(card string, n int) {
	globalManager.summaryCount.WithLabelValues(card).Set(float64(n))
}

// RecordHTTPRequest records a dashboard HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records dashboard HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an HTTP error by endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the registry that backs the package-level helpers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
