package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the sync engine,
// the impact matcher and the ops HTTP surface.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	syncRuns        *prometheus.CounterVec
	syncDuration    prometheus.Observer
	lessonsStored   prometheus.Gauge
	remoteFailures  *prometheus.CounterVec
	partialFailures prometheus.Counter
	matcherLatency  prometheus.Observer
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	syncRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_sync_runs_total",
		Help: "Timetable sync runs by outcome code",
	}, []string{"status"})

	syncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_sync_duration_seconds",
		Help:    "Duration of timetable sync runs",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	lessonsStored := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_lessons_stored",
		Help: "Number of lessons in the current timetable snapshot",
	})

	remoteFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_remote_failures_total",
		Help: "Failed calls to the remote timetable service",
	}, []string{"operation"})

	partialFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_partial_fetch_failures_total",
		Help: "Batch passes that failed and contributed no entries",
	})

	matcherLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_matcher_duration_seconds",
		Help:    "Latency of affected lesson lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, syncRuns, syncDuration, lessonsStored, remoteFailures,
		partialFailures, matcherLatency, cacheLatency, cacheWrite, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		syncRuns:        syncRuns,
		syncDuration:    syncDuration,
		lessonsStored:   lessonsStored,
		remoteFailures:  remoteFailures,
		partialFailures: partialFailures,
		matcherLatency:  matcherLatency,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveSync records the outcome of one sync run. status is "ok" or an error code.
func (m *MetricsService) ObserveSync(status string, duration time.Duration, lessons int) {
	if m == nil {
		return
	}
	m.syncRuns.WithLabelValues(status).Inc()
	m.syncDuration.Observe(duration.Seconds())
	if status == "ok" {
		m.lessonsStored.Set(float64(lessons))
	}
}

// RecordRemoteFailure counts a failed remote call.
func (m *MetricsService) RecordRemoteFailure(operation string) {
	if m == nil {
		return
	}
	m.remoteFailures.WithLabelValues(operation).Inc()
}

// RecordPartialFailure counts a failed batch pass.
func (m *MetricsService) RecordPartialFailure() {
	if m == nil {
		return
	}
	m.partialFailures.Inc()
}

// ObserveMatcher records the latency of one affected lesson lookup.
func (m *MetricsService) ObserveMatcher(duration time.Duration) {
	if m == nil {
		return
	}
	m.matcherLatency.Observe(duration.Seconds())
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}
