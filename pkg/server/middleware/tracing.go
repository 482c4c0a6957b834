package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"mercator-hq/shuttle/pkg/requestid"
	"mercator-hq/shuttle/pkg/telemetry/tracing"
)

// Tracing starts a server span per request, continuing any trace context
// the client sent. The span is renamed to "METHOD route" once routing is
// known and ends when the handler returns, which for an event stream is
// when the stream closes.
func Tracing(t *tracing.Tracer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := tracing.Extract(r.Context(), r.Header)
			ctx, span := t.Start(ctx, r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(tracing.RequestAttributes(r)...),
			)
			defer span.End()

			if id, ok := requestid.FromContext(ctx); ok {
				span.SetAttributes(attribute.String(tracing.AttrRequestID, id.String()))
			}

			rw := wrap(w)
			r = r.WithContext(ctx)
			next.ServeHTTP(rw, r)

			route := routePattern(r)
			span.SetName(r.Method + " " + route)
			span.SetAttributes(attribute.String(tracing.AttrHTTPRoute, route))
			tracing.SetHTTPStatus(span, rw.Status())
		})
	}
}
