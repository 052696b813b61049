package tracing

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans points the global tracer at an in-memory recorder for the test
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	prev := Tracer
	Tracer = tp.Tracer(TracerName)
	t.Cleanup(func() {
		Tracer = prev
		tp.Shutdown(context.Background())
	})
	return sr
}

func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	ended := sr.Ended()
	if len(ended) != 1 {
		t.Fatalf("Expected 1 ended span, got %d", len(ended))
	}
	return ended[0]
}

func attrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestInitTracingWithoutEndpoint(t *testing.T) {
	t.Setenv("OTLP_ENDPOINT", "")

	ctx := context.Background()
	shutdown, err := InitTracing(ctx, "test-version")
	if err != nil {
		t.Fatalf("InitTracing failed: %v", err)
	}
	defer shutdown(ctx)

	_, span := StartSpan(ctx, "osmread.decode_file")
	if span.IsRecording() {
		t.Error("Spans should not record without an endpoint")
	}
	EndSpan(span, &testError{msg: "ignored"})
}

func TestDecodeSpanAttributes(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartSpan(context.Background(), "osmread.decode_file",
		trace.WithAttributes(DocumentAttributes(SourceFile, "extract.json.bz2", "bzip2", true)...))
	span.SetAttributes(ElementCountAttributes(5, 2, 1)...)
	EndSpan(span, nil)

	got := onlySpan(t, sr)
	if got.Name() != "osmread.decode_file" {
		t.Errorf("Span name = %s", got.Name())
	}
	if got.Status().Code != codes.Ok {
		t.Errorf("Status = %v, expected Ok", got.Status().Code)
	}

	a := attrs(got)
	wantStrings := map[attribute.Key]string{
		AttrDocumentSource:      SourceFile,
		AttrDocumentPath:        "extract.json.bz2",
		AttrDocumentCompression: "bzip2",
	}
	for k, want := range wantStrings {
		if v := a[k].AsString(); v != want {
			t.Errorf("%s = %q, expected %q", k, v, want)
		}
	}
	if !a[AttrDocumentStreaming].AsBool() {
		t.Errorf("%s should be true", AttrDocumentStreaming)
	}

	wantCounts := map[attribute.Key]int64{
		AttrElementsCount:  8,
		AttrNodesCount:     5,
		AttrWaysCount:      2,
		AttrRelationsCount: 1,
	}
	for k, want := range wantCounts {
		if v := a[k].AsInt64(); v != want {
			t.Errorf("%s = %d, expected %d", k, v, want)
		}
	}
}

func TestEndSpanRecordsDecodeFailure(t *testing.T) {
	sr := recordSpans(t)

	err := &testError{msg: "MALFORMED_RECORD (record 3, field \"lon\")"}
	_, span := StartSpan(context.Background(), "osmread.decode_file")
	span.SetAttributes(DecodeErrorAttributes("MALFORMED_RECORD", 3)...)
	EndSpan(span, err)

	got := onlySpan(t, sr)
	if got.Status().Code != codes.Error || got.Status().Description != err.Error() {
		t.Errorf("Status = %+v, expected error with message", got.Status())
	}

	a := attrs(got)
	if v := a[AttrDecodeErrorCode].AsString(); v != "MALFORMED_RECORD" {
		t.Errorf("%s = %q", AttrDecodeErrorCode, v)
	}
	if v := a[AttrRecordIndex].AsInt64(); v != 3 {
		t.Errorf("%s = %d, expected 3", AttrRecordIndex, v)
	}
	if v := a[AttrErrorType].AsString(); v != "*tracing.testError" {
		t.Errorf("%s = %q", AttrErrorType, v)
	}

	events := got.Events()
	if len(events) != 1 || events[0].Name != "exception" {
		t.Errorf("Expected one exception event, got %v", events)
	}
}

func TestDecodeErrorAttributesWithoutRecord(t *testing.T) {
	a := DecodeErrorAttributes("INVALID_DOCUMENT", -1)
	if len(a) != 1 {
		t.Fatalf("Expected only the code attribute, got %v", a)
	}
	if a[0].Key != AttrDecodeErrorCode {
		t.Errorf("Key = %s", a[0].Key)
	}
}

func TestContextHelpers(t *testing.T) {
	sr := recordSpans(t)

	// No span in context: nothing to record on, nothing to panic on
	AddEvent(context.Background(), "rate_limit_wait")
	SetAttributes(context.Background(), attribute.Int64(AttrRateLimitWaitMs, 1))

	ctx, span := StartSpan(context.Background(), "overpass.fetch")
	AddEvent(ctx, "rate_limit_wait",
		trace.WithAttributes(attribute.String(AttrRateLimitService, "overpass")))
	SetAttributes(ctx, attribute.Int64(AttrRateLimitWaitMs, 250))
	span.End()

	got := onlySpan(t, sr)
	if v := attrs(got)[AttrRateLimitWaitMs].AsInt64(); v != 250 {
		t.Errorf("%s = %d, expected 250", AttrRateLimitWaitMs, v)
	}
	events := got.Events()
	if len(events) != 1 || events[0].Name != "rate_limit_wait" {
		t.Fatalf("Expected rate_limit_wait event, got %v", events)
	}
}

func TestCacheAttributes(t *testing.T) {
	a := CacheAttributes(CacheTypeOverpass, true, "")
	if len(a) != 3 {
		t.Fatalf("CacheAttributes returned %d attributes, expected 3", len(a))
	}
	if a[0].Value.AsString() != CacheTypeOverpass || !a[1].Value.AsBool() {
		t.Errorf("Unexpected cache attributes %v", a)
	}
}

func TestErrorAttributesNil(t *testing.T) {
	if a := ErrorAttributes(nil); len(a) != 0 {
		t.Errorf("ErrorAttributes(nil) returned %d attributes, expected 0", len(a))
	}
}

func TestSamplerFromEnv(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"", "AlwaysOnSampler"},
		{"not-a-number", "AlwaysOnSampler"},
		{"1.5", "AlwaysOnSampler"},
		{"0.5", "TraceIDRatioBased{0.5}"},
	}

	for _, tt := range tests {
		t.Setenv("OTLP_SAMPLE_RATIO", tt.raw)
		if got := samplerFromEnv().Description(); !strings.Contains(got, tt.want) {
			t.Errorf("OTLP_SAMPLE_RATIO=%q: sampler = %s, expected %s", tt.raw, got, tt.want)
		}
	}
}

func TestEnvironmentDetection(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	if env := getEnvironment(); env != "development" {
		t.Errorf("getEnvironment() = %s, expected 'development'", env)
	}

	t.Setenv("ENVIRONMENT", "production")
	if env := getEnvironment(); env != "production" {
		t.Errorf("getEnvironment() = %s, expected 'production'", env)
	}
}

// testError is a simple error type for testing
type testError struct {
	msg string
}

func (e *testError) Error() string {
	return e.msg
}
