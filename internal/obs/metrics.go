package obs

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alex-user-go/hotelsearch/internal/search/breaker"
)

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	requests            prometheus.Counter
	cacheHits           prometheus.Counter
	rateLimitDrops      prometheus.Counter
	providerErrors      *prometheus.CounterVec
	providerLatency     *prometheus.HistogramVec
	breakerState        *prometheus.GaugeVec
	breakerTransitions  *prometheus.CounterVec
	resultSize          prometheus.Histogram
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
	logger   *slog.Logger
}

// NewMetrics creates collectors and registers them on reg.
func NewMetrics(reg *prometheus.Registry, logger *slog.Logger) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotel_search_requests_total",
			Help: "Total number of search requests",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotel_search_cache_hits_total",
			Help: "Total number of search cache hits",
		}),
		rateLimitDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hotel_search_ratelimit_drops_total",
			Help: "Requests rejected by the rate limiter",
		}),
		providerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_errors_total",
			Help: "Failed or rejected provider calls",
		}, []string{"provider", "reason"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provider_latency_seconds",
			Help:    "Latency of provider calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "provider_circuit_state",
			Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
		}, []string{"provider"}),
		breakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_circuit_transitions_total",
			Help: "Circuit breaker state transitions",
		}, []string{"provider", "to"}),
		resultSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hotel_search_result_total",
			Help:    "Size of the deduplicated result set per search",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		registry: reg,
		logger:   logger,
	}

	reg.MustRegister(
		m.requests,
		m.cacheHits,
		m.rateLimitDrops,
		m.providerErrors,
		m.providerLatency,
		m.breakerState,
		m.breakerTransitions,
		m.resultSize,
		m.httpRequests,
		m.httpRequestDuration,
	)
	return m
}

// IncRequests increments the search request counter.
func (m *Metrics) IncRequests() { m.requests.Inc() }

// IncCacheHits increments the cache hits counter.
func (m *Metrics) IncCacheHits() { m.cacheHits.Inc() }

// IncRateLimitDrops increments the rate limit drop counter.
func (m *Metrics) IncRateLimitDrops() { m.rateLimitDrops.Inc() }

// IncProviderErrors counts a failed provider call. reason is "error", "timeout" or "circuit_open".
func (m *Metrics) IncProviderErrors(provider, reason string) {
	m.providerErrors.WithLabelValues(provider, reason).Inc()
}

// ObserveProviderLatency records the duration of one provider call.
func (m *Metrics) ObserveProviderLatency(provider string, seconds float64) {
	m.providerLatency.WithLabelValues(provider).Observe(seconds)
}

// InitBreakerState publishes the initial state of a provider breaker.
func (m *Metrics) InitBreakerState(provider string, state breaker.State) {
	m.breakerState.WithLabelValues(provider).Set(float64(state))
}

// BreakerTransition records a breaker state change.
func (m *Metrics) BreakerTransition(provider string, _, to breaker.State) {
	m.breakerState.WithLabelValues(provider).Set(float64(to))
	m.breakerTransitions.WithLabelValues(provider, to.String()).Inc()
}

// ObserveResultSize records the size of a merged result set.
func (m *Metrics) ObserveResultSize(total int) {
	m.resultSize.Observe(float64(total))
}

// ObserveHTTPRequest records one served HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, path, status string, seconds float64) {
	m.httpRequests.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path, status).Observe(seconds)
}

// MetricsHandler returns a handler for /metrics requests in Prometheus format.
func (m *Metrics) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: slog.NewLogLogger(m.logger.Handler(), slog.LevelError),
	})
}
