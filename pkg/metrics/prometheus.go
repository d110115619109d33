// Package metrics provides Prometheus metrics for the podium leaderboard service.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the podium service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          atomic.Bool
	refreshInterval  atomic.Int64
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Leaderboard read path
	leaderboardRequests prometheus.Counter
	leaderboardErrors   prometheus.Counter
	aggregationLatency  prometheus.Histogram
	streamReadLatency   *prometheus.HistogramVec
	streamReadErrors    *prometheus.CounterVec
	playersRanked       prometheus.Gauge

	// Bonus grant path
	grantOutcomes        *prometheus.CounterVec
	grantLatency         prometheus.Histogram
	ledgerReserveLatency prometheus.Histogram
	scoreUpdateLatency   prometheus.Histogram
	compensations        *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	rateLimited         *prometheus.CounterVec

	// Release queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Release workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter
	workerRetryCount        prometheus.Counter

	errorRateByComponent *prometheus.CounterVec

	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "podium",
		subsystem:        "leaderboard",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	m.enabled.Store(true)
	m.refreshInterval.Store(int64(defaultRefreshInterval))

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// RefreshInterval returns how often periodic gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return time.Duration(m.refreshInterval.Load()) }

// Enabled reports whether recording is on.
func (m *Manager) Enabled() bool { return m.enabled.Load() }

func (m *Manager) name(n string) string { return m.metricPrefix + n }

func (m *Manager) counter(n, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(n),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gauge(n, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(n),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogram(n, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(n),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	m.leaderboardRequests = auto.NewCounter(m.counter("requests_total", "Total number of leaderboard computations"))
	m.leaderboardErrors = auto.NewCounter(m.counter("errors_total", "Total number of failed leaderboard computations"))
	m.aggregationLatency = auto.NewHistogram(m.histogram("aggregation_latency_milliseconds", "Latency of a full multi-stream aggregation in milliseconds"))
	m.streamReadLatency = auto.NewHistogramVec(m.histogram("stream_read_latency_milliseconds", "Latency of a single stream grouped sum in milliseconds"), []string{"stream"})
	m.streamReadErrors = auto.NewCounterVec(m.counter("stream_read_errors_total", "Total number of failed stream reads"), []string{"stream"})
	m.playersRanked = auto.NewGauge(m.gauge("players_ranked", "Number of players in the last computed ranking"))

	m.grantOutcomes = auto.NewCounterVec(m.counter("grant_outcomes_total", "Bonus grant requests by terminal state"), []string{"state"})
	m.grantLatency = auto.NewHistogram(m.histogram("grant_latency_milliseconds", "End to end bonus grant latency in milliseconds"))
	m.ledgerReserveLatency = auto.NewHistogram(m.histogram("ledger_reserve_latency_milliseconds", "Ledger reservation latency in milliseconds"))
	m.scoreUpdateLatency = auto.NewHistogram(m.histogram("score_update_latency_milliseconds", "Additive score update latency in milliseconds"))
	m.compensations = auto.NewCounterVec(m.counter("compensations_total", "Reservation releases by result"), []string{"result"})

	m.httpRequests = auto.NewCounterVec(m.counter("http_requests_total", "Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogram("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})
	m.rateLimited = auto.NewCounterVec(m.counter("http_rate_limited_total", "Requests rejected by the rate limiter"), []string{"endpoint"})

	m.queueSize = auto.NewGauge(m.gauge("release_queue_size", "Current number of pending release jobs"))
	m.queueCapacity = auto.NewGauge(m.gauge("release_queue_capacity", "Maximum release queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gauge("release_queue_utilization_ratio", "Release queue utilization ratio (size / capacity)"))
	m.queueEnqueueRate = auto.NewCounter(m.counter("release_queue_enqueue_total", "Total number of release jobs enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counter("release_queue_dequeue_total", "Total number of release jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counter("release_queue_enqueue_errors_total", "Total number of release jobs rejected by the queue"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogram("release_queue_wait_milliseconds", "Time a release job spent queued in milliseconds"))

	m.workerCount = auto.NewGauge(m.gauge("release_worker_count", "Configured number of release workers"))
	m.workerActiveCount = auto.NewGauge(m.gauge("release_worker_active_count", "Number of release workers currently running"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogram("release_worker_latency_milliseconds", "Release attempt latency in milliseconds"))
	m.workerErrorRate = auto.NewCounter(m.counter("release_worker_errors_total", "Total number of failed release attempts"))
	m.workerRetryCount = auto.NewCounter(m.counter("release_worker_retries_total", "Total number of release jobs re-enqueued for retry"))

	m.errorRateByComponent = auto.NewCounterVec(m.counter("errors_by_component_total", "Errors by component and kind"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gauge("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gauge("system_goroutine_count", "Number of goroutines"))
}

// Configure applies runtime options to the global manager after startup.
// Only WithMetricsEnabled and WithRefreshInterval take effect here; the
// remaining options shape metric identity and are fixed once registered.
func Configure(opts ...Option) {
	for _, opt := range opts {
		opt(globalManager)
	}
}

// RefreshInterval returns the refresh interval of the global manager.
func RefreshInterval() time.Duration { return globalManager.RefreshInterval() }

// Enabled reports whether the global manager records anything.
func Enabled() bool { return globalManager.enabled.Load() }

// RecordLeaderboardRequest increments the leaderboard computation counter.
func RecordLeaderboardRequest() {
	if !Enabled() {
		return
	}
	globalManager.leaderboardRequests.Inc()
}

// RecordLeaderboardError increments the leaderboard errors counter.
func RecordLeaderboardError() {
	if !Enabled() {
		return
	}
	globalManager.leaderboardErrors.Inc()
}

// RecordAggregationLatency records a full aggregation latency in milliseconds.
func RecordAggregationLatency(latencyMs float64) {
	if !Enabled() {
		return
	}
	globalManager.aggregationLatency.Observe(latencyMs)
}

// RecordStreamRead records the latency of one stream read and whether it failed.
func RecordStreamRead(stream string, latencyMs float64, failed bool) {
	if !Enabled() {
		return
	}
	globalManager.streamReadLatency.WithLabelValues(stream).Observe(latencyMs)
	if failed {
		globalManager.streamReadErrors.WithLabelValues(stream).Inc()
	}
}

// UpdatePlayersRanked sets the size of the last ranking.
func UpdatePlayersRanked(count int) {
	if !Enabled() {
		return
	}
	globalManager.playersRanked.Set(float64(count))
}

// RecordGrantOutcome counts a grant request by its terminal state.
func RecordGrantOutcome(state string) {
	if !Enabled() {
		return
	}
	globalManager.grantOutcomes.WithLabelValues(state).Inc()
}

// RecordGrantLatency records end to end grant latency.
func RecordGrantLatency(latencyMs float64) {
	if !Enabled() {
		return
	}
	globalManager.grantLatency.Observe(latencyMs)
}

// RecordLedgerReserveLatency records ledger reservation latency.
func RecordLedgerReserveLatency(latencyMs float64) {
	if !Enabled() {
		return
	}
	globalManager.ledgerReserveLatency.Observe(latencyMs)
}

// RecordScoreUpdateLatency records the additive score update latency.
func RecordScoreUpdateLatency(latencyMs float64) {
	if !Enabled() {
		return
	}
	globalManager.scoreUpdateLatency.Observe(latencyMs)
}

// RecordCompensation counts a release by result: "released", "queued" or "dropped".
func RecordCompensation(result string) {
	if !Enabled() {
		return
	}
	globalManager.compensations.WithLabelValues(result).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !Enabled() {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !Enabled() {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited(endpoint string) {
	if !Enabled() {
		return
	}
	globalManager.rateLimited.WithLabelValues(endpoint).Inc()
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if !Enabled() {
		return
	}
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if !Enabled() {
		return
	}
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	if !Enabled() {
		return
	}
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if !Enabled() {
		return
	}
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if !Enabled() {
		return
	}
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if !Enabled() {
		return
	}
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records how long a job waited in the queue.
func RecordQueueProcessingLatency(latencyMs float64) {
	if !Enabled() {
		return
	}
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	if !Enabled() {
		return
	}
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	if !Enabled() {
		return
	}
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if !Enabled() {
		return
	}
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if !Enabled() {
		return
	}
	globalManager.workerErrorRate.Inc()
}

// RecordWorkerRetry increments the worker retry counter.
func RecordWorkerRetry() {
	if !Enabled() {
		return
	}
	globalManager.workerRetryCount.Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if !Enabled() {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !Enabled() {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	if !Enabled() {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
