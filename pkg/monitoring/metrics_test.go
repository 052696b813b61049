package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsInitialization(t *testing.T) {
	metrics := []prometheus.Collector{
		ElementsDecodedTotal,
		DecodeErrorsTotal,
		FieldDefaultsTotal,
		DocumentsTotal,
		DocumentDecodeDuration,
		ExternalServiceRequestsTotal,
		ExternalServiceRequestDuration,
		RateLimitWaitTime,
		CacheHits,
		CacheMisses,
		CacheSize,
		ErrorsTotal,
	}

	for _, metric := range metrics {
		if metric == nil {
			t.Error("Metric is nil")
		}
	}
}

func TestRecordElement(t *testing.T) {
	ElementsDecodedTotal.Reset()

	RecordElement("node")
	RecordElement("node")
	RecordElement("way")

	if got := testutil.ToFloat64(ElementsDecodedTotal.WithLabelValues("node")); got != 2 {
		t.Errorf("Expected 2 nodes, got %v", got)
	}
	if got := testutil.ToFloat64(ElementsDecodedTotal.WithLabelValues("way")); got != 1 {
		t.Errorf("Expected 1 way, got %v", got)
	}
}

func TestRecordDecodeErrorAndDefaults(t *testing.T) {
	DecodeErrorsTotal.Reset()
	FieldDefaultsTotal.Reset()

	RecordDecodeError("MALFORMED_RECORD")
	RecordFieldDefault("uid")
	RecordFieldDefault("uid")

	if got := testutil.ToFloat64(DecodeErrorsTotal.WithLabelValues("MALFORMED_RECORD")); got != 1 {
		t.Errorf("Expected 1 decode error, got %v", got)
	}
	if got := testutil.ToFloat64(FieldDefaultsTotal.WithLabelValues("uid")); got != 2 {
		t.Errorf("Expected 2 uid defaults, got %v", got)
	}
}

func TestRecordDocument(t *testing.T) {
	DocumentsTotal.Reset()

	RecordDocument("file", 20*time.Millisecond, true)
	RecordDocument("file", 5*time.Millisecond, false)

	if got := testutil.ToFloat64(DocumentsTotal.WithLabelValues("file", "success")); got != 1 {
		t.Errorf("Expected 1 successful document, got %v", got)
	}
	if got := testutil.ToFloat64(DocumentsTotal.WithLabelValues("file", "error")); got != 1 {
		t.Errorf("Expected 1 failed document, got %v", got)
	}
}

func TestRecordExternalServiceRequest(t *testing.T) {
	ExternalServiceRequestsTotal.Reset()

	RecordExternalServiceRequest("overpass", "interpreter", 500*time.Millisecond, true)
	if got := testutil.ToFloat64(ExternalServiceRequestsTotal.WithLabelValues("overpass", "interpreter", "success")); got != 1 {
		t.Errorf("Expected 1 successful external request, got %v", got)
	}

	RecordExternalServiceRequest("overpass", "interpreter", 300*time.Millisecond, false)
	if got := testutil.ToFloat64(ExternalServiceRequestsTotal.WithLabelValues("overpass", "interpreter", "error")); got != 1 {
		t.Errorf("Expected 1 failed external request, got %v", got)
	}
}

func TestCacheMetrics(t *testing.T) {
	CacheHits.Reset()
	CacheMisses.Reset()
	CacheSize.Reset()

	RecordCacheHit("test_cache")
	if got := testutil.ToFloat64(CacheHits.WithLabelValues("test_cache")); got != 1 {
		t.Errorf("Expected 1 cache hit, got %v", got)
	}

	RecordCacheMiss("test_cache")
	if got := testutil.ToFloat64(CacheMisses.WithLabelValues("test_cache")); got != 1 {
		t.Errorf("Expected 1 cache miss, got %v", got)
	}

	UpdateCacheSize("test_cache", 42)
	if got := testutil.ToFloat64(CacheSize.WithLabelValues("test_cache")); got != 42 {
		t.Errorf("Expected cache size 42, got %v", got)
	}
}

func TestErrorMetrics(t *testing.T) {
	ErrorsTotal.Reset()

	RecordError("test_component", "test_error")
	if got := testutil.ToFloat64(ErrorsTotal.WithLabelValues("test_component", "test_error")); got != 1 {
		t.Errorf("Expected 1 error, got %v", got)
	}

	// Histogram values are not easily inspected; this must not panic
	RecordRateLimitWait("overpass", time.Second)
}

func BenchmarkRecordElement(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		RecordElement("node")
	}
}
