package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scanops/envelope-batch-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the batch domain.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	batchesStarted  prometheus.Counter
	batchesFinished prometheus.Counter
	itemsPerBatch   prometheus.Histogram
	itemResults     *prometheus.CounterVec
	fallbackItems   prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// NewMetricsService registers the collectors on a private registry.
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

	batchesStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "batches_started_total",
		Help: "Total number of batches opened",
	})

	batchesFinished := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "batches_finished_total",
		Help: "Total number of batches finalized",
	})

	itemsPerBatch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "batch_items_count",
		Help:    "Number of items submitted per finalized batch",
		Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000},
	})

	itemResults := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "items_processed_total",
		Help: "Total processed items by verdict",
	}, []string{"result"})

	fallbackItems := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "items_fallback_total",
		Help: "Total items whose verdict relied on fewer readings than configured",
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

	registry.MustRegister(requestDuration, requestTotal, batchesStarted, batchesFinished,
		itemsPerBatch, itemResults, fallbackItems, cacheHits, cacheMisses, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		batchesStarted:  batchesStarted,
		batchesFinished: batchesFinished,
		itemsPerBatch:   itemsPerBatch,
		itemResults:     itemResults,
		fallbackItems:   fallbackItems,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (s *MetricsService) Handler() http.Handler {
	return s.handler
}

// ObserveHTTPRequest records one handled request.
func (s *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labels := []string{method, path, fmt.Sprintf("%d", status)}
	s.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	s.requestTotal.WithLabelValues(labels...).Inc()
}

// ObserveBatchStarted counts an opened batch.
func (s *MetricsService) ObserveBatchStarted() {
	s.batchesStarted.Inc()
}

// ObserveBatchFinished counts a finalized batch and its item volume.
func (s *MetricsService) ObserveBatchFinished(itemCount int) {
	s.batchesFinished.Inc()
	s.itemsPerBatch.Observe(float64(itemCount))
}

// ObserveItemResult counts one processed item by verdict.
func (s *MetricsService) ObserveItemResult(result models.ItemResult, fallback bool) {
	s.itemResults.WithLabelValues(string(result)).Inc()
	if fallback {
		s.fallbackItems.Inc()
	}
}

// ObserveCacheLookup counts a cache hit or miss.
func (s *MetricsService) ObserveCacheLookup(hit bool) {
	if hit {
		s.cacheHits.Inc()
		return
	}
	s.cacheMisses.Inc()
}
