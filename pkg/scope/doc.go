// Package scope provides a request-scoped key/value store.
//
// A scope is opened once per logical request and carried on the request's
// context.Context. Any code that receives that context (or one derived from
// it) reads and writes the same store; code serving a different request never
// sees it, no matter how the two requests interleave.
//
// # Lifecycle
//
//	ctx, tok := scope.Open(r.Context(), map[string]any{"tenant": "acme"})
//	defer tok.Close()
//
//	_ = scope.Set(ctx, "user", "alice")
//	user, _ := scope.Get(ctx, "user")
//
// After Close every operation through a context carrying the closed store
// fails with ErrScopeNotActive, except Exists which reports false. Run wraps
// Open and Close so the store is released on every exit path, including
// panics.
//
// # Middleware
//
// Middleware opens a scope around each HTTP request. Extractors seed the
// store from the incoming request (headers, JSON body fields, bearer token
// claims; see package extract). If an extractor fails the request is
// rejected before any scope is opened.
//
//	handler = scope.Middleware(
//		scope.WithExtractor(extract.Headers(map[string]string{"X-Tenant-ID": "tenant"})),
//	)(handler)
//
// # Snapshots
//
// Copy returns an independent map. Callers that need context data after the
// request finishes (background jobs, audit records) must copy it rather than
// keep the store.
package scope
