package tracing

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for decode operations
const (
	// Document attributes
	AttrDocumentSource      = "osm.document.source"
	AttrDocumentPath        = "osm.document.path"
	AttrDocumentCompression = "osm.document.compression"
	AttrDocumentStreaming   = "osm.document.streaming"

	// Decode result attributes
	AttrElementsCount   = "osm.elements.count"
	AttrNodesCount      = "osm.elements.nodes"
	AttrWaysCount       = "osm.elements.ways"
	AttrRelationsCount  = "osm.elements.relations"
	AttrDecodeErrorCode = "osm.decode.error_code"
	AttrRecordIndex     = "osm.decode.record_index"

	// Overpass endpoint
	AttrServiceURL = "osm.service.url"

	// Cache attributes
	AttrCacheType = "osm.cache.type"
	AttrCacheHit  = "osm.cache.hit"
	AttrCacheKey  = "osm.cache.key"

	// Rate limiting attributes
	AttrRateLimitService = "osm.ratelimit.service"
	AttrRateLimitWaitMs  = "osm.ratelimit.wait_ms"

	// HTTP attributes
	AttrHTTPMethod     = "http.method"
	AttrHTTPStatusCode = "http.status_code"

	// Error attributes
	AttrErrorType    = "error.type"
	AttrErrorMessage = "error.message"
)

// Document sources
const (
	SourceFile     = "file"
	SourceOverpass = "overpass"
)

// Cache types
const (
	CacheTypeOverpass = "overpass"
)

// DocumentAttributes returns attributes describing an input document
func DocumentAttributes(source, path, compression string, streaming bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDocumentSource, source),
		attribute.String(AttrDocumentPath, path),
		attribute.String(AttrDocumentCompression, compression),
		attribute.Bool(AttrDocumentStreaming, streaming),
	}
}

// ElementCountAttributes returns attributes for a finished decode pass
func ElementCountAttributes(nodes, ways, relations int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrElementsCount, nodes+ways+relations),
		attribute.Int(AttrNodesCount, nodes),
		attribute.Int(AttrWaysCount, ways),
		attribute.Int(AttrRelationsCount, relations),
	}
}

// DecodeErrorAttributes names the error code of a failed decode pass and the
// record it failed on. A negative index means the failure was not tied to a
// record and is left out.
func DecodeErrorAttributes(code string, index int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String(AttrDecodeErrorCode, code)}
	if index >= 0 {
		attrs = append(attrs, attribute.Int(AttrRecordIndex, index))
	}
	return attrs
}

// CacheAttributes returns attributes for cache operations
func CacheAttributes(cacheType string, hit bool, key string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrCacheType, cacheType),
		attribute.Bool(AttrCacheHit, hit),
		attribute.String(AttrCacheKey, key),
	}
}

// ErrorAttributes describes err by its Go type and message
func ErrorAttributes(err error) []attribute.KeyValue {
	if err == nil {
		return nil
	}
	return []attribute.KeyValue{
		attribute.String(AttrErrorType, fmt.Sprintf("%T", err)),
		attribute.String(AttrErrorMessage, err.Error()),
	}
}
