// Package metrics provides Prometheus metrics for the pitwall telemetry service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the pitwall service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Ingestion metrics
	samplesIngested  prometheus.Counter
	samplesRejected  prometheus.Counter
	samplesDuplicate prometheus.Counter

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors prometheus.Counter

	// Driver state metrics
	driversTracked prometheus.Gauge

	// Broadcast metrics
	subscriberCount     prometheus.Gauge
	broadcastsEmitted   prometheus.Counter
	broadcastsCoalesced prometheus.Counter
	deliveryFailures    prometheus.Counter
	rankDuration        prometheus.Histogram

	// Intent metrics
	intentPredictions *prometheus.CounterVec

	// Replay ledger metrics
	ledgerAppends     *prometheus.CounterVec
	ledgerFlushes     prometheus.Counter
	ledgerFlushErrors prometheus.Counter

	// Worker metrics
	workerCount     prometheus.Gauge
	pipelineLatency prometheus.Histogram

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System metrics
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

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "pitwall",
		subsystem:        "telemetry",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.samplesIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_ingested_total",
		Help:      "Total number of telemetry samples accepted for processing",
	})

	m.samplesRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_rejected_total",
		Help:      "Total number of telemetry samples rejected by validation",
	})

	m.samplesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_duplicate_total",
		Help:      "Total number of duplicate telemetry samples suppressed",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Current number of samples waiting in the ingestion queue",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Configured capacity of the ingestion queue",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Total number of failed enqueue attempts (backpressure or closed)",
	})

	m.driversTracked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "drivers_tracked",
		Help:      "Current number of drivers held in the state store",
	})

	m.subscriberCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "subscribers",
		Help:      "Current number of connected leaderboard subscribers",
	})

	m.broadcastsEmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcasts_emitted_total",
		Help:      "Total number of debounced leaderboard broadcasts emitted",
	})

	m.broadcastsCoalesced = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "broadcasts_coalesced_total",
		Help:      "Total number of notify calls coalesced into a pending broadcast",
	})

	m.deliveryFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_failures_total",
		Help:      "Total number of subscriber deliveries that failed and pruned the handle",
	})

	m.rankDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rank_duration_ms",
		Help:      "Leaderboard recomputation duration in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.intentPredictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "intent_predictions_total",
		Help:      "Total number of intent predictions by label",
	}, []string{"label"})

	m.ledgerAppends = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_appends_total",
		Help:      "Total number of replay ledger appends by kind",
	}, []string{"kind"})

	m.ledgerFlushes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_flushes_total",
		Help:      "Total number of durable replay ledger flushes",
	})

	m.ledgerFlushErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_flush_errors_total",
		Help:      "Total number of failed replay ledger flushes",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "workers",
		Help:      "Number of pipeline workers",
	})

	m.pipelineLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "pipeline_latency_ms",
		Help:      "Per-sample pipeline processing latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_bytes",
		Help:      "Current heap allocation in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_ms",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Ingestion helpers.
func RecordSampleIngested() { globalManager.samplesIngested.Inc() }
func RecordSampleRejected() { globalManager.samplesRejected.Inc() }
func RecordSampleDuplicate() { globalManager.samplesDuplicate.Inc() }

// Queue helpers.
func UpdateQueueSize(n int) { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueCapacity(n int) { globalManager.queueCapacity.Set(float64(n)) }
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Driver state helpers.
func UpdateDriversTracked(n int) { globalManager.driversTracked.Set(float64(n)) }

// Broadcast helpers.
func UpdateSubscriberCount(n int) { globalManager.subscriberCount.Set(float64(n)) }
func RecordBroadcastEmitted() { globalManager.broadcastsEmitted.Inc() }
func RecordBroadcastCoalesced() { globalManager.broadcastsCoalesced.Inc() }
func RecordDeliveryFailure() { globalManager.deliveryFailures.Inc() }
func RecordRankDuration(ms float64) { globalManager.rankDuration.Observe(ms) }

// Intent helpers.
func RecordIntentPrediction(label string) {
	globalManager.intentPredictions.WithLabelValues(label).Inc()
}

// Ledger helpers.
func RecordLedgerAppend(kind string) { globalManager.ledgerAppends.WithLabelValues(kind).Inc() }
func RecordLedgerFlush() { globalManager.ledgerFlushes.Inc() }
func RecordLedgerFlushError() { globalManager.ledgerFlushErrors.Inc() }

// Worker helpers.
func UpdateWorkerCount(n int) { globalManager.workerCount.Set(float64(n)) }
func RecordPipelineLatency(ms float64) { globalManager.pipelineLatency.Observe(ms) }

// HTTP helpers.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// System helpers.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(n int) { globalManager.systemGoroutineCount.Set(float64(n)) }
func RecordSystemGCPauseTime(ms float64) { globalManager.systemGCPauseTime.Observe(ms) }
