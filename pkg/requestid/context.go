package requestid

import (
	"context"
	"net/http"

	"mercator-hq/shuttle/pkg/scope"
)

// ScopeKey is the scope key the identifier is stored under.
const ScopeKey = "request_id"

type contextKey struct{}

// WithID returns a copy of ctx carrying id. If ctx has an open scope the id
// is also stored under ScopeKey.
func WithID(ctx context.Context, id ID) context.Context {
	ctx = context.WithValue(ctx, contextKey{}, id)
	if scope.Exists(ctx) {
		_ = scope.Set(ctx, ScopeKey, string(id))
	}
	return ctx
}

// Assign generates a new identifier and installs it on ctx.
func Assign(ctx context.Context) (context.Context, ID, error) {
	id, err := New()
	if err != nil {
		return ctx, "", err
	}
	return WithID(ctx, id), id, nil
}

// FromContext returns the identifier of the request ctx belongs to.
// It returns false outside any request.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(contextKey{}).(ID)
	return id, ok && id != ""
}

// ScopeExtractor copies the request identifier into scopes opened by
// scope.Middleware. It must run inside Middleware.
func ScopeExtractor() scope.Extractor {
	return func(r *http.Request) (map[string]any, error) {
		id, ok := FromContext(r.Context())
		if !ok {
			return map[string]any{}, nil
		}
		return map[string]any{ScopeKey: string(id)}, nil
	}
}
