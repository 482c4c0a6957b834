package requestid

import (
	"log/slog"
	"net/http"

	"mercator-hq/shuttle/pkg/httperr"
)

// DefaultHeader is the response header carrying the identifier.
const DefaultHeader = "X-Request-ID"

type options struct {
	header        string
	trustIncoming bool
	generate      func() (ID, error)
	logger        *slog.Logger
}

// Option configures Middleware.
type Option func(*options)

// WithHeaderName sets the response header name.
func WithHeaderName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.header = name
		}
	}
}

// WithTrustIncoming reuses a well-formed identifier sent by the client in
// the same header instead of generating one.
func WithTrustIncoming(trust bool) Option {
	return func(o *options) {
		o.trustIncoming = trust
	}
}

// WithGenerator replaces New as the identifier source.
func WithGenerator(gen func() (ID, error)) Option {
	return func(o *options) {
		if gen != nil {
			o.generate = gen
		}
	}
}

// WithLogger sets the logger used for generation failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Middleware assigns an identifier to each request.
//
// Example usage:
//
//	handler = requestid.Middleware()(handler)
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	o := options{
		header:   DefaultHeader,
		generate: New,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := o.resolve(r)
			if err != nil {
				o.logger.ErrorContext(r.Context(), "request id generation failed",
					"error", err,
					"path", r.URL.Path,
				)
				_ = httperr.Write(w, httperr.NewServerError("failed to assign request id"))
				return
			}

			iw := &idWriter{ResponseWriter: w, header: o.header, id: id}
			// Deferred so a panic recovered further out still answers with
			// the identifier header.
			defer iw.commit()
			next.ServeHTTP(iw, r.WithContext(WithID(r.Context(), id)))
		})
	}
}

func (o *options) resolve(r *http.Request) (ID, error) {
	if o.trustIncoming {
		if incoming, err := Parse(r.Header.Get(o.header)); err == nil {
			return incoming, nil
		}
	}
	return o.generate()
}
