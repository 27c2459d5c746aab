// Package metrics provides Prometheus metrics for the whattoeat service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// defaultLatencyBuckets are in milliseconds.
var defaultLatencyBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000} //nolint:gochecknoglobals // read-only

// Manager owns every collector the service exports.
type Manager struct {
	namespace       string
	subsystem       string
	latencyBuckets  []float64
	enabled         bool
	refreshInterval time.Duration
	constLabels     prometheus.Labels
	metricPrefix    string
	registry        prometheus.Registerer

	// Draws
	draws        *prometheus.CounterVec
	groupPicks   *prometheus.CounterVec
	drawErrors   prometheus.Counter
	spinTicks    prometheus.Counter
	spinDuration prometheus.Histogram

	// Sessions
	sessionCommands   *prometheus.CounterVec
	sessionsActive    prometheus.Gauge
	sessionsEvicted   prometheus.Counter
	streamSubscribers prometheus.Gauge
	themeChanges      *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryQueryLatency prometheus.Histogram
	repositoryWriteLatency prometheus.Histogram
	repositoryErrors       *prometheus.CounterVec
	repositoryDrawsTotal   prometheus.Gauge

	// Queue
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueEnqueued  prometheus.Counter
	queueDequeued  prometheus.Counter
	queueDropped   *prometheus.CounterVec
	queueOccupancy prometheus.Gauge

	// Workers
	workerCount             prometheus.Gauge
	workerProcessed         prometheus.Counter
	workerErrors            prometheus.Counter
	workerProcessingLatency prometheus.Histogram

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by package-level helpers

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out of /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:       "whattoeat",
		subsystem:       "picker",
		latencyBuckets:  defaultLatencyBuckets,
		enabled:         true,
		refreshInterval: defaultRefreshInterval,
		constLabels:     prometheus.Labels{},
		registry:        prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	m.draws = m.counterVec("draws_total", "Total number of final draws by origin", "source")
	m.groupPicks = m.counterVec("group_picks_total", "Final draws per vendor group", "group")
	m.drawErrors = m.counter("draw_errors_total", "Draw attempts rejected by the selector")
	m.spinTicks = m.counter("spin_ticks_total", "Cosmetic churn picks emitted while spinning")
	m.spinDuration = m.histogram("spin_duration_milliseconds", "Wall time from start to settle of a spin",
		[]float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000})

	m.sessionCommands = m.counterVec("session_commands_total", "Session commands by kind and outcome", "command", "outcome")
	m.sessionsActive = m.gauge("sessions_active", "Sessions currently held in memory")
	m.sessionsEvicted = m.counter("sessions_evicted_total", "Sessions evicted after their idle ttl")
	m.streamSubscribers = m.gauge("stream_subscribers", "Open session stream subscriptions")
	m.themeChanges = m.counterVec("theme_changes_total", "Persisted theme changes by resulting theme", "theme")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		ConstLabels: m.constLabels,
		Buckets:     m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Repository read latency in milliseconds", m.latencyBuckets)
	m.repositoryWriteLatency = m.histogram("repository_write_latency_milliseconds", "Repository write latency in milliseconds", m.latencyBuckets)
	m.repositoryErrors = m.counterVec("repository_errors_total", "Repository failures by operation", "op")
	m.repositoryDrawsTotal = m.gauge("repository_draws", "Draws persisted in history")

	m.queueSize = m.gauge("queue_size", "Current size of the draw event queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the draw event queue")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Draw events accepted by the queue")
	m.queueDequeued = m.counter("queue_dequeued_total", "Draw events handed to workers")
	m.queueDropped = m.counterVec("queue_dropped_total", "Draw events rejected by the queue", "reason")
	m.queueOccupancy = m.gauge("queue_utilization", "Queue size divided by capacity")

	m.workerCount = m.gauge("worker_count", "History workers running")
	m.workerProcessed = m.counter("worker_processed_total", "Draw events persisted by workers")
	m.workerErrors = m.counter("worker_errors_total", "Draw events workers failed to persist")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time spent persisting one draw event", m.latencyBuckets)

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RefreshInterval reports how often gauges should be refreshed by pollers.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RecordDraw counts a final draw and its vendor group.
func (m *Manager) RecordDraw(source, group string) {
	if !m.enabled {
		return
	}
	m.draws.WithLabelValues(source).Inc()
	m.groupPicks.WithLabelValues(group).Inc()
}

// RecordDraw counts a final draw on the global manager.
func RecordDraw(source, group string) { globalManager.RecordDraw(source, group) }

// RecordDrawError counts a rejected draw.
func RecordDrawError() {
	if globalManager.enabled {
		globalManager.drawErrors.Inc()
	}
}

// RecordSpinTick counts one cosmetic churn pick.
func RecordSpinTick() {
	if globalManager.enabled {
		globalManager.spinTicks.Inc()
	}
}

// RecordSpinDuration records how long a spin ran before settling.
func RecordSpinDuration(d time.Duration) {
	if globalManager.enabled {
		globalManager.spinDuration.Observe(float64(d.Milliseconds()))
	}
}

// RecordSessionCommand counts a session command by outcome (applied, noop, duplicate).
func RecordSessionCommand(command, outcome string) {
	if globalManager.enabled {
		globalManager.sessionCommands.WithLabelValues(command, outcome).Inc()
	}
}

// UpdateSessionsActive sets the in-memory session count.
func UpdateSessionsActive(n int) {
	if globalManager.enabled {
		globalManager.sessionsActive.Set(float64(n))
	}
}

// RecordSessionEvicted counts an evicted session.
func RecordSessionEvicted() {
	if globalManager.enabled {
		globalManager.sessionsEvicted.Inc()
	}
}

// AddStreamSubscribers adjusts the open subscription gauge by delta.
func AddStreamSubscribers(delta int) {
	if globalManager.enabled {
		globalManager.streamSubscribers.Add(float64(delta))
	}
}

// RecordThemeChange counts a persisted theme change.
func RecordThemeChange(theme string) {
	if globalManager.enabled {
		globalManager.themeChanges.WithLabelValues(theme).Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
	}
}

// RecordRepositoryQueryLatency records a repository read.
func RecordRepositoryQueryLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.repositoryQueryLatency.Observe(latencyMs)
	}
}

// RecordRepositoryWriteLatency records a repository write.
func RecordRepositoryWriteLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.repositoryWriteLatency.Observe(latencyMs)
	}
}

// RecordRepositoryError counts a failed repository operation.
func RecordRepositoryError(op string) {
	if globalManager.enabled {
		globalManager.repositoryErrors.WithLabelValues(op).Inc()
	}
}

// UpdateRepositoryDraws sets the persisted draw count.
func UpdateRepositoryDraws(n int) {
	if globalManager.enabled {
		globalManager.repositoryDrawsTotal.Set(float64(n))
	}
}

// UpdateQueueSize sets the current queue length and utilization.
func UpdateQueueSize(size, capacity int) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueSize.Set(float64(size))
	if capacity > 0 {
		globalManager.queueOccupancy.Set(float64(size) / float64(capacity))
	}
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue counts an accepted event.
func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue counts an event handed to a worker.
func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeued.Inc()
	}
}

// RecordQueueDrop counts a rejected event.
func RecordQueueDrop(reason string) {
	if globalManager.enabled {
		globalManager.queueDropped.WithLabelValues(reason).Inc()
	}
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerProcessed counts a persisted event and its latency.
func RecordWorkerProcessed(latencyMs float64) {
	if globalManager.enabled {
		globalManager.workerProcessed.Inc()
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError counts a failed event.
func RecordWorkerError() {
	if globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	if globalManager.enabled {
		globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
	}
}

// RecordErrorByEndpoint records an error for an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

// RecordSystemGCPauseTime records an average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
