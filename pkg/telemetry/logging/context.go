package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"mercator-hq/shuttle/pkg/requestid"
	"mercator-hq/shuttle/pkg/scope"
)

// Attribute keys added from the request context.
const (
	RequestIDKey = "request_id"
	TraceIDKey   = "trace_id"
	SpanIDKey    = "span_id"
)

// ContextHandler enriches records with request-scoped fields before passing
// them to the wrapped handler. Only the *Context logging methods see these
// fields; a record logged without a context is passed through unchanged.
type ContextHandler struct {
	next      slog.Handler
	scopeKeys []string
}

// NewContextHandler wraps next. scopeKeys names the scope entries copied
// into each record when present.
func NewContextHandler(next slog.Handler, scopeKeys ...string) *ContextHandler {
	return &ContextHandler{next: next, scopeKeys: scopeKeys}
}

// Enabled reports whether the wrapped handler handles records at level.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle adds the context fields to r and forwards it.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if attrs := contextAttrs(ctx, h.scopeKeys); len(attrs) > 0 {
			r.AddAttrs(attrs...)
		}
	}
	return h.next.Handle(ctx, r)
}

// WithAttrs returns a handler whose wrapped handler has attrs.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{next: h.next.WithAttrs(attrs), scopeKeys: h.scopeKeys}
}

// WithGroup returns a handler whose wrapped handler opens group name.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{next: h.next.WithGroup(name), scopeKeys: h.scopeKeys}
}

// Attrs returns the fields ContextHandler would add for ctx.
func Attrs(ctx context.Context, scopeKeys ...string) []slog.Attr {
	return contextAttrs(ctx, scopeKeys)
}

func contextAttrs(ctx context.Context, scopeKeys []string) []slog.Attr {
	var attrs []slog.Attr

	if id, ok := requestid.FromContext(ctx); ok {
		attrs = append(attrs, slog.String(RequestIDKey, id.String()))
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String(TraceIDKey, sc.TraceID().String()),
			slog.String(SpanIDKey, sc.SpanID().String()),
		)
	}

	for _, key := range scopeKeys {
		if key == requestid.ScopeKey {
			continue
		}
		v, found, err := scope.Lookup(ctx, key)
		if err != nil {
			// No active scope, so no other key will resolve either.
			break
		}
		if found {
			attrs = append(attrs, slog.Any(key, v))
		}
	}

	return attrs
}
