package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/division-console/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
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
	gatewayDuration *prometheus.HistogramVec
	deletionItems   *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	queueDepth      prometheus.Gauge

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	gatewayCount         uint64
	gatewayDurationTotal uint64
	deletedCount         uint64
	failedCount          uint64
	batchCount           uint64
	queueDepthValue      int64
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

	gatewayDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Duration of calls to the division gateway",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	deletionItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "deletion_items_total",
		Help: "Division deletions attempted by the bulk worker",
	}, []string{"result"})

	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deletion_batch_duration_seconds",
		Help:    "Wall time spent processing one deletion batch",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"severity"})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "deletion_queue_depth",
		Help: "Deletion batches waiting behind the one in flight",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		gatewayDuration, deletionItems, batchDuration, queueDepth, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		gatewayDuration: gatewayDuration,
		deletionItems:   deletionItems,
		batchDuration:   batchDuration,
		queueDepth:      queueDepth,
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

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	if total := hits + misses; total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveGatewayCall records one upstream call. Status 0 means the request never got a response.
func (m *MetricsService) ObserveGatewayCall(operation string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(operation, fmt.Sprintf("%d", status)).Observe(duration.Seconds())
	atomic.AddUint64(&m.gatewayCount, 1)
	atomic.AddUint64(&m.gatewayDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordDeletionItem counts one processed batch item.
func (m *MetricsService) RecordDeletionItem(deleted bool) {
	if m == nil {
		return
	}
	if deleted {
		m.deletionItems.WithLabelValues("deleted").Inc()
		atomic.AddUint64(&m.deletedCount, 1)
		return
	}
	m.deletionItems.WithLabelValues("failed").Inc()
	atomic.AddUint64(&m.failedCount, 1)
}

// ObserveDeletionBatch records the duration of a finished batch.
func (m *MetricsService) ObserveDeletionBatch(severity models.Severity, duration time.Duration) {
	if m == nil {
		return
	}
	m.batchDuration.WithLabelValues(string(severity)).Observe(duration.Seconds())
	atomic.AddUint64(&m.batchCount, 1)
}

// SetDeletionQueueDepth publishes the number of waiting batches.
func (m *MetricsService) SetDeletionQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
	atomic.StoreInt64(&m.queueDepthValue, int64(depth))
}

// Snapshot returns aggregated metrics suitable for JSON endpoints.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)
	gatewayCalls := atomic.LoadUint64(&m.gatewayCount)
	gatewayDuration := atomic.LoadUint64(&m.gatewayDurationTotal)

	var cacheRatio float64
	if totalLookups := hits + misses; totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	var avgGatewayMs float64
	if gatewayCalls > 0 {
		avgGatewayMs = float64(gatewayDuration) / float64(gatewayCalls) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		GatewayCalls:             gatewayCalls,
		AverageGatewayDurationMs: avgGatewayMs,
		DeletedItems:             atomic.LoadUint64(&m.deletedCount),
		FailedItems:              atomic.LoadUint64(&m.failedCount),
		BatchesCompleted:         atomic.LoadUint64(&m.batchCount),
		QueueDepth:               int(atomic.LoadInt64(&m.queueDepthValue)),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
