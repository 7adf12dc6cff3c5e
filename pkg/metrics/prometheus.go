package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// scoreBuckets split the 0-100 relationship score at the label thresholds.
var scoreBuckets = []float64{19.5, 39.5, 59.5, 79.5, 100} //nolint:gochecknoglobals // constant bucket layout

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	registry       prometheus.Registerer

	// Relationship scoring
	scoresComputed    prometheus.Counter
	scoreDistribution prometheus.Histogram
	scoresByLabel     *prometheus.CounterVec
	scoringLatency    prometheus.Histogram

	// Domain volume
	contactsTotal        prometheus.Gauge
	interactionsLogged   *prometheus.CounterVec
	interactionDuplicate prometheus.Counter
	reconnectListSize    prometheus.Gauge

	// Store
	storeOperationLatency *prometheus.HistogramVec
	storeErrors           *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRateLimited     *prometheus.CounterVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // process-wide registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "circle",
		subsystem:      "relationships",
		latencyBuckets: prometheus.DefBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for all collectors
	auto := promauto.With(m.registry)

	m.scoresComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "scores_computed_total",
		Help: "Total number of relationship scores computed",
	})
	m.scoreDistribution = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "score",
		Help:    "Distribution of computed relationship scores (0-100)",
		Buckets: scoreBuckets,
	})
	m.scoresByLabel = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "scores_by_label_total",
		Help: "Computed relationship scores by qualitative label",
	}, []string{"label"})
	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "scoring_batch_latency_milliseconds",
		Help:    "Time spent scoring a batch of contacts in milliseconds",
		Buckets: m.latencyBuckets,
	})

	m.contactsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "contacts",
		Help: "Number of contacts returned by the most recent listing",
	})
	m.interactionsLogged = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "interactions_logged_total",
		Help: "Interactions logged, by interaction type",
	}, []string{"type"})
	m.interactionDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "interactions_duplicate_total",
		Help: "Interaction submissions dropped because their idempotency key was already seen",
	})
	m.reconnectListSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "reconnect_without_interaction",
		Help: "Contacts with no recorded interaction in the most recent dashboard",
	})

	m.storeOperationLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "store",
		Name:    "operation_latency_milliseconds",
		Help:    "Contact store operation latency in milliseconds",
		Buckets: m.latencyBuckets,
	}, []string{"operation"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "store",
		Name: "errors_total",
		Help: "Contact store errors by operation",
	}, []string{"operation"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name:    "request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.latencyBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRateLimited = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "http",
		Name: "rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	}, []string{"endpoint"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors",
		Name: "by_component_total",
		Help: "Errors by component and error type",
	}, []string{"component", "error_type"})
	m.errorsByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors",
		Name: "by_type_total",
		Help: "Errors by type and severity",
	}, []string{"error_type", "severity"})
	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: "errors",
		Name: "by_endpoint_total",
		Help: "Errors by HTTP endpoint",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "memory_usage_bytes",
		Help: "Current heap allocation in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name: "goroutines",
		Help: "Current number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: "system",
		Name:    "gc_pause_milliseconds",
		Help:    "Average GC pause time in milliseconds",
		Buckets: m.latencyBuckets,
	})
}

// RecordScore records one computed relationship score and its label.
func RecordScore(score int, label string) {
	globalManager.scoresComputed.Inc()
	globalManager.scoreDistribution.Observe(float64(score))
	globalManager.scoresByLabel.WithLabelValues(label).Inc()
}

// RecordScoringLatency records how long a batch of contacts took to score.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// UpdateContactsTotal sets the contacts gauge.
func UpdateContactsTotal(count int) {
	globalManager.contactsTotal.Set(float64(count))
}

// RecordInteractionLogged counts a newly stored interaction.
func RecordInteractionLogged(interactionType string) {
	globalManager.interactionsLogged.WithLabelValues(interactionType).Inc()
}

// RecordInteractionDuplicate counts an interaction dropped by idempotency checks.
func RecordInteractionDuplicate() {
	globalManager.interactionDuplicate.Inc()
}

// UpdateReconnectWithoutInteraction sets the number of never-contacted contacts.
func UpdateReconnectWithoutInteraction(count int) {
	globalManager.reconnectListSize.Set(float64(count))
}

// RecordStoreLatency records a store operation latency.
func RecordStoreLatency(operation string, latencyMs float64) {
	globalManager.storeOperationLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRateLimited counts a request rejected by the rate limiter.
func RecordRateLimited(endpoint string) {
	globalManager.httpRateLimited.WithLabelValues(endpoint).Inc()
}

// RecordErrorByComponent counts an error raised by a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType counts an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint counts an error response of an endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap allocation gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
