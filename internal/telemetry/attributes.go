// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	FetchKindKey    = "fetch.kind"
	FetchTimeoutKey = "fetch.timeout_ms"

	SessionIDKey  = "session.id"
	GenerationKey = "session.generation"

	ErrorKindKey = "error.kind"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// FetchAttributes describes a bounded fetch before it is issued.
func FetchAttributes(kind string, timeoutMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(FetchKindKey, kind),
		attribute.Int64(FetchTimeoutKey, timeoutMS),
	}
}
