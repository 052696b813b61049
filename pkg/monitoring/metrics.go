package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Service name for metrics
	ServiceName = "osmread"
)

var (
	// Decode metrics
	ElementsDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmread_elements_decoded_total",
			Help: "Total number of elements decoded, by element type",
		},
		[]string{"type"},
	)

	DecodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmread_decode_errors_total",
			Help: "Total number of aborted decode passes, by error code",
		},
		[]string{"code"},
	)

	FieldDefaultsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmread_field_defaults_total",
			Help: "Total number of optional fields that fell back to their default",
		},
		[]string{"field"},
	)

	DocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmread_documents_total",
			Help: "Total number of documents processed",
		},
		[]string{"source", "status"},
	)

	DocumentDecodeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmread_document_decode_duration_seconds",
			Help:    "Time to decode a whole document",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"source"},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmread_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmread_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmread_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmread_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmread_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osmread_cache_size",
			Help: "Current number of items in cache",
		},
		[]string{"cache_type"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmread_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Helper functions for common metric updates
func RecordElement(elementType string) {
	ElementsDecodedTotal.WithLabelValues(elementType).Inc()
}

func RecordDecodeError(code string) {
	DecodeErrorsTotal.WithLabelValues(code).Inc()
}

func RecordFieldDefault(field string) {
	FieldDefaultsTotal.WithLabelValues(field).Inc()
}

func RecordDocument(source string, duration time.Duration, success bool) {
	DocumentsTotal.WithLabelValues(source, statusLabel(success)).Inc()
	DocumentDecodeDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, statusLabel(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordCacheHit(cacheType string) {
	CacheHits.WithLabelValues(cacheType).Inc()
}

func RecordCacheMiss(cacheType string) {
	CacheMisses.WithLabelValues(cacheType).Inc()
}

func UpdateCacheSize(cacheType string, size int) {
	CacheSize.WithLabelValues(cacheType).Set(float64(size))
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
