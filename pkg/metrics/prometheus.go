// Package metrics provides Prometheus metrics for the stride session service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	defaultNamespace = "stride"
	subsystem        = "sessions"
)

// Duplicate detection stages.
const (
	StageDedupe     = "dedupe"
	StageRecorder   = "recorder"
	StageAggregator = "aggregator"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace    string
	customLabels map[string]string
	registry     prometheus.Registerer

	// Ingestion
	eventsReceived   prometheus.Counter
	eventsRecorded   prometheus.Counter
	eventsDuplicate  *prometheus.CounterVec
	validationErrors *prometheus.CounterVec
	storageErrors    *prometheus.CounterVec
	dedupeCacheSize  prometheus.Gauge

	// Aggregation
	recomputes       prometheus.Counter
	recomputeSkipped prometheus.Counter
	recomputeLatency prometheus.Histogram
	foldedEvents     prometheus.Histogram
	malformedEvents  prometheus.Counter
	clampedDurations prometheus.Counter

	// Scoring
	scoreRequests prometheus.Counter
	scoreLatency  prometheus.Histogram
	scoreValue    prometheus.Histogram

	// Store
	storeLatency  *prometheus.HistogramVec
	storedRecords *prometheus.GaugeVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Configure rebuilds the global manager on a fresh registry. Call it once at
// startup, before anything records a metric.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:    defaultNamespace,
		customLabels: make(map[string]string),
		registry:     prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.eventsReceived = auto.NewCounter(m.counterOpts("events_received_total",
		"Total number of raw events accepted for normalization"))
	m.eventsRecorded = auto.NewCounter(m.counterOpts("events_recorded_total",
		"Total number of events newly written to the event store"))
	m.eventsDuplicate = auto.NewCounterVec(m.counterOpts("events_duplicate_total",
		"Total number of duplicate events absorbed, by detection stage"), []string{"stage"})
	m.validationErrors = auto.NewCounterVec(m.counterOpts("validation_errors_total",
		"Total number of rejected submissions, by reason"), []string{"reason"})
	m.storageErrors = auto.NewCounterVec(m.counterOpts("storage_errors_total",
		"Total number of event store failures, by operation"), []string{"operation"})
	m.dedupeCacheSize = auto.NewGauge(m.gaugeOpts("dedupe_cache_size",
		"Number of event ids held by the dedupe cache"))

	m.recomputes = auto.NewCounter(m.counterOpts("recomputes_total",
		"Total number of session summaries recomputed and persisted"))
	m.recomputeSkipped = auto.NewCounter(m.counterOpts("recomputes_skipped_total",
		"Total number of recomputes that found no events"))
	m.recomputeLatency = auto.NewHistogram(m.histogramOpts("recompute_latency_milliseconds",
		"Histogram of session recompute latency in milliseconds", nil))
	m.foldedEvents = auto.NewHistogram(m.histogramOpts("folded_events",
		"Distinct events folded per recompute",
		[]float64{1, 2, 5, 10, 25, 50, 100, 250, 1000}))
	m.malformedEvents = auto.NewCounter(m.counterOpts("malformed_events_total",
		"Total number of stored events skipped during aggregation"))
	m.clampedDurations = auto.NewCounter(m.counterOpts("clamped_durations_total",
		"Total number of sessions whose end preceded their start"))

	m.scoreRequests = auto.NewCounter(m.counterOpts("score_requests_total",
		"Total number of consistency score computations"))
	m.scoreLatency = auto.NewHistogram(m.histogramOpts("score_latency_milliseconds",
		"Histogram of consistency score latency in milliseconds, including the session query", nil))
	m.scoreValue = auto.NewHistogram(m.histogramOpts("score_value",
		"Distribution of computed consistency scores",
		[]float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}))

	m.storeLatency = auto.NewHistogramVec(m.histogramOpts("store_latency_milliseconds",
		"Event store operation latency in milliseconds", nil), []string{"operation"})
	m.storedRecords = auto.NewGaugeVec(m.gaugeOpts("stored_records",
		"Number of records held by the store, by collection"), []string{"collection"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total",
		"Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", nil),
		[]string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total",
		"Total number of errors by component"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total",
		"Total number of errors by type"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total",
		"Total number of errors by endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds",
		"Latency of operations that resulted in errors", nil), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes",
		"System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count",
		"Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds",
		"GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// RecordEventReceived increments the received events counter.
func RecordEventReceived() {
	globalManager.eventsReceived.Inc()
}

// RecordEventRecorded increments the recorded events counter.
func RecordEventRecorded() {
	globalManager.eventsRecorded.Inc()
}

// RecordEventDuplicate increments the duplicate counter for stage.
func RecordEventDuplicate(stage string) {
	globalManager.eventsDuplicate.WithLabelValues(stage).Inc()
}

// RecordValidationError increments the validation error counter for reason.
func RecordValidationError(reason string) {
	globalManager.validationErrors.WithLabelValues(reason).Inc()
}

// RecordStorageError increments the storage error counter for operation.
func RecordStorageError(operation string) {
	globalManager.storageErrors.WithLabelValues(operation).Inc()
}

// UpdateDedupeCacheSize sets the dedupe cache size gauge.
func UpdateDedupeCacheSize(size int64) {
	globalManager.dedupeCacheSize.Set(float64(size))
}

// RecordRecompute records a persisted recompute with its latency and folded event count.
func RecordRecompute(latencyMs float64, folded int) {
	globalManager.recomputes.Inc()
	globalManager.recomputeLatency.Observe(latencyMs)
	globalManager.foldedEvents.Observe(float64(folded))
}

// RecordRecomputeSkipped increments the empty recompute counter.
func RecordRecomputeSkipped() {
	globalManager.recomputeSkipped.Inc()
}

// RecordMalformedEvent increments the skipped stored event counter.
func RecordMalformedEvent() {
	globalManager.malformedEvents.Inc()
}

// RecordClampedDuration increments the negative duration counter.
func RecordClampedDuration() {
	globalManager.clampedDurations.Inc()
}

// RecordScore records a consistency score computation.
func RecordScore(latencyMs float64, score int) {
	globalManager.scoreRequests.Inc()
	globalManager.scoreLatency.Observe(latencyMs)
	globalManager.scoreValue.Observe(float64(score))
}

// RecordStoreLatency records the latency of a store operation.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// UpdateStoredRecords sets the record count gauge for collection.
func UpdateStoredRecords(collection string, count int) {
	globalManager.storedRecords.WithLabelValues(collection).Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// Since returns the elapsed milliseconds since start as a float64.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
