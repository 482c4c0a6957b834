package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

// Span attribute keys. HTTP keys follow the OpenTelemetry semantic
// conventions; the rest use the "shuttle." namespace.
const (
	AttrHTTPMethod     = "http.request.method"
	AttrHTTPRoute      = "http.route"
	AttrHTTPStatusCode = "http.response.status_code"
	AttrURLPath        = "url.path"
	AttrUserAgent      = "user_agent.original"

	AttrRequestID   = "shuttle.request_id"
	AttrLastEventID = "shuttle.sse.last_event_id"
)

// Propagator returns the global text map propagator.
func Propagator() propagation.TextMapPropagator {
	return otel.GetTextMapPropagator()
}

// Extract returns ctx carrying the remote span context found in the
// traceparent and tracestate headers, if any.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return Propagator().Extract(ctx, propagation.HeaderCarrier(headers))
}

// Inject writes the trace context of ctx into headers.
func Inject(ctx context.Context, headers http.Header) {
	Propagator().Inject(ctx, propagation.HeaderCarrier(headers))
}

// RequestAttributes returns the span attributes known before a request is
// routed.
func RequestAttributes(r *http.Request) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrHTTPMethod, r.Method),
		attribute.String(AttrURLPath, r.URL.Path),
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String(AttrUserAgent, ua))
	}
	if id := r.Header.Get("Last-Event-ID"); id != "" {
		attrs = append(attrs, attribute.String(AttrLastEventID, id))
	}
	return attrs
}
