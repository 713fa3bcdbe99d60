// Package metrics provides Prometheus metrics for the edurating service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Engine evaluations
	evaluations       *prometheus.CounterVec
	evaluationLatency *prometheus.HistogramVec

	// Configuration snapshots
	snapshotReloads        *prometheus.CounterVec
	snapshotReloadDuration prometheus.Histogram
	snapshotLoadedAt       prometheus.Gauge
	snapshotRules          *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// Rating jobs
	jobs          *prometheus.CounterVec
	storedRatings prometheus.Gauge

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the Record*/Update* helpers

// customRegistry keeps the Go runtime collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared exposition registry

func init() { //nolint:gochecknoinits // global collectors must exist before any helper runs
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "edurating",
		subsystem:        "engine",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gauge(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogram(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.evaluations = auto.NewCounterVec(
		m.counter("evaluations_total", "Engine evaluations by component and outcome"),
		[]string{"component", "outcome"},
	)
	m.evaluationLatency = auto.NewHistogramVec(
		m.histogram("evaluation_latency_milliseconds", "Engine evaluation latency in milliseconds"),
		[]string{"component"},
	)

	m.snapshotReloads = auto.NewCounterVec(
		m.counter("snapshot_reloads_total", "Configuration snapshot reloads by source and outcome"),
		[]string{"source", "outcome"},
	)
	m.snapshotReloadDuration = auto.NewHistogram(
		m.histogram("snapshot_reload_duration_milliseconds", "Time spent loading a configuration snapshot"),
	)
	m.snapshotLoadedAt = auto.NewGauge(
		m.gauge("snapshot_loaded_timestamp_seconds", "Unix time of the current configuration snapshot"),
	)
	m.snapshotRules = auto.NewGaugeVec(
		m.gauge("snapshot_rules", "Rows in the current snapshot by kind"),
		[]string{"kind"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counter("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogram("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counter("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByType = auto.NewCounterVec(
		m.counter("errors_by_type_total", "Errors by type and severity"),
		[]string{"error_type", "severity"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counter("errors_by_endpoint_total", "Errors by endpoint, method and type"),
		[]string{"endpoint", "method", "error_type"},
	)
	m.errorLatency = auto.NewHistogramVec(
		m.histogram("error_latency_milliseconds", "Latency of failed operations in milliseconds"),
		[]string{"component", "error_type"},
	)

	m.jobs = auto.NewCounterVec(
		m.counter("rating_jobs_total", "Rating jobs by outcome"),
		[]string{"outcome"},
	)
	m.storedRatings = auto.NewGauge(m.gauge("stored_ratings", "Teachers with a computed rating"))

	m.queueSize = auto.NewGauge(m.gauge("queue_size", "Rating jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gauge("queue_capacity", "Maximum rating jobs the queue holds"))
	m.queueUtilization = auto.NewGauge(m.gauge("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueued = auto.NewCounter(m.counter("queue_enqueued_total", "Jobs accepted by the queue"))
	m.queueDequeued = auto.NewCounter(m.counter("queue_dequeued_total", "Jobs handed to workers"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("queue_enqueue_errors_total", "Jobs refused by the queue"))
	m.queueProcessingLatency = auto.NewHistogram(
		m.histogram("queue_processing_latency_milliseconds", "Time spent in Enqueue"),
	)

	m.workerCount = auto.NewGauge(m.gauge("worker_count", "Running rating workers"))
	m.workerMessagesPerSecond = auto.NewGauge(m.gauge("worker_jobs_per_second", "Jobs completed per second across the pool"))
	m.workerProcessingLatency = auto.NewHistogram(
		m.histogram("worker_processing_latency_milliseconds", "Time to compute and store one rating"),
	)
	m.workerErrors = auto.NewCounter(m.counter("worker_errors_total", "Jobs that failed in a worker"))

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_bytes", "Heap bytes in use"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutines", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogram("system_gc_pause_milliseconds", "Most recent GC pause in milliseconds"),
	)
}

// RecordEvaluation counts one engine call.
func RecordEvaluation(component, outcome string) {
	globalManager.evaluations.WithLabelValues(component, outcome).Inc()
}

// RecordEvaluationLatency records how long an engine call took.
func RecordEvaluationLatency(component string, latencyMs float64) {
	globalManager.evaluationLatency.WithLabelValues(component).Observe(latencyMs)
}

// RecordSnapshotReload counts a snapshot load attempt.
func RecordSnapshotReload(source, outcome string) {
	globalManager.snapshotReloads.WithLabelValues(source, outcome).Inc()
}

// RecordSnapshotReloadDuration records the time spent loading a snapshot.
func RecordSnapshotReloadDuration(latencyMs float64) {
	globalManager.snapshotReloadDuration.Observe(latencyMs)
}

// UpdateSnapshotLoadedAt publishes the load time of the current snapshot.
func UpdateSnapshotLoadedAt(t time.Time) {
	globalManager.snapshotLoadedAt.Set(float64(t.Unix()))
}

// UpdateSnapshotRuleCount publishes the number of rows of one kind.
func UpdateSnapshotRuleCount(kind string, count int) {
	globalManager.snapshotRules.WithLabelValues(kind).Set(float64(count))
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records the duration of one HTTP request.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent counts an error raised inside a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType counts an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint counts an HTTP error.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of a failed operation.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// RecordJob counts a rating job transition (accepted, duplicate, rejected, completed, failed).
func RecordJob(outcome string) {
	globalManager.jobs.WithLabelValues(outcome).Inc()
}

// UpdateStoredRatings publishes the size of the results store.
func UpdateStoredRatings(count int) {
	globalManager.storedRatings.Set(float64(count))
}

// UpdateQueueSize publishes the queue backlog.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity publishes the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization publishes size/capacity.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue counts an accepted job.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue counts a job handed to a worker.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError counts a refused job.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records time spent in Enqueue.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount publishes the pool size.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerMessagesPerSecond publishes pool throughput.
func UpdateWorkerMessagesPerSecond(rate float64) {
	globalManager.workerMessagesPerSecond.Set(rate)
}

// RecordWorkerProcessingLatency records the time to handle one job.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// UpdateSystemMemoryUsage sets heap bytes in use.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records a GC pause in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry exposed on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
