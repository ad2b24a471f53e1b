package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP traffic, caching and the
// approval workflow.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	approvalTransitions *prometheus.CounterVec
	sweepRuns           *prometheus.CounterVec
	sweepItems          *prometheus.CounterVec
	sweepDuration       *prometheus.HistogramVec
	notifications       *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
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

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	approvalTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cec_approval_transitions_total",
		Help: "Approval decisions applied, by action and deciding role",
	}, []string{"action", "role"})

	sweepRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cec_sweep_runs_total",
		Help: "Scheduled sweep executions by job and outcome",
	}, []string{"job", "outcome"})

	sweepItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cec_sweep_items_total",
		Help: "Items affected by sweeps (activities promoted, reminders sent)",
	}, []string{"job"})

	sweepDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cec_sweep_duration_seconds",
		Help:    "Duration of sweep executions",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cec_notifications_total",
		Help: "Notification deliveries by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		approvalTransitions, sweepRuns, sweepItems, sweepDuration, notifications, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		approvalTransitions: approvalTransitions,
		sweepRuns:           sweepRuns,
		sweepItems:          sweepItems,
		sweepDuration:       sweepDuration,
		notifications:       notifications,
	}
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

// Registry exposes the underlying registry for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordApprovalTransition counts an applied approve, return or resubmit.
func (m *MetricsService) RecordApprovalTransition(action, role string) {
	if m == nil {
		return
	}
	m.approvalTransitions.WithLabelValues(action, role).Inc()
}

// RecordSweep counts a finished sweep run and the number of items it affected.
func (m *MetricsService) RecordSweep(job string, items int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.sweepRuns.WithLabelValues(job, outcome).Inc()
	m.sweepDuration.WithLabelValues(job).Observe(duration.Seconds())
	if items > 0 {
		m.sweepItems.WithLabelValues(job).Add(float64(items))
	}
}

// RecordNotification counts notification outcomes (stored, dropped, emailed, email_failed).
func (m *MetricsService) RecordNotification(outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.notifications.WithLabelValues(outcome).Add(float64(n))
}
