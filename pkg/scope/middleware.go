package scope

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"

	"mercator-hq/shuttle/pkg/httperr"
)

// Extractor derives initial scope data from an incoming request.
// It may read headers and the body; it must honor r.Context() cancellation.
type Extractor func(r *http.Request) (map[string]any, error)

// ExtractorError wraps a failure returned by an Extractor.
type ExtractorError struct {
	Err error
}

func (e *ExtractorError) Error() string {
	return fmt.Sprintf("context extraction failed: %v", e.Err)
}

func (e *ExtractorError) Unwrap() error {
	return e.Err
}

// ErrorHandler writes the response for a request rejected by an extractor.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// Observer receives scope lifecycle notifications, typically for metrics.
type Observer interface {
	ScopeOpened()
	ScopeClosed()
	ExtractionFailed()
}

type nopObserver struct{}

func (nopObserver) ScopeOpened()      {}
func (nopObserver) ScopeClosed()      {}
func (nopObserver) ExtractionFailed() {}

type options struct {
	extractors   []Extractor
	errorHandler ErrorHandler
	logger       *slog.Logger
	observer     Observer
}

// Option configures Middleware.
type Option func(*options)

// WithExtractor adds an extractor. Extractors run in the order given and
// their results are merged; later keys overwrite earlier ones.
func WithExtractor(e Extractor) Option {
	return func(o *options) {
		if e != nil {
			o.extractors = append(o.extractors, e)
		}
	}
}

// WithErrorHandler replaces the default extractor error response.
func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		if h != nil {
			o.errorHandler = h
		}
	}
}

// WithLogger sets the logger used to report extractor failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver registers a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// Middleware opens a scope around every request it wraps.
//
// The configured extractors run first. If any of them fails, the request is
// answered by the error handler and the wrapped handler is never called; no
// scope is opened. Otherwise the merged data seeds a new scope that stays
// open while the wrapped handler runs and is closed when it returns or
// panics.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	o := &options{
		errorHandler: writeExtractorError,
		logger:       slog.Default(),
		observer:     nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := o.extract(r)
			if err != nil {
				o.observer.ExtractionFailed()
				o.logger.WarnContext(r.Context(), "context extraction failed",
					"method", r.Method,
					"path", r.URL.Path,
					"error", err,
				)
				o.errorHandler(w, r, err)
				return
			}

			ctx, tok := Open(r.Context(), data)
			o.observer.ScopeOpened()
			defer func() {
				tok.Close()
				o.observer.ScopeClosed()
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (o *options) extract(r *http.Request) (map[string]any, error) {
	data := make(map[string]any)
	for _, e := range o.extractors {
		part, err := e(r)
		if err != nil {
			return nil, &ExtractorError{Err: err}
		}
		maps.Copy(data, part)
	}
	return data, nil
}

// httpError is implemented by extractor errors that choose their own response.
type httpError interface {
	HTTPError() *httperr.ErrorResponse
}

func writeExtractorError(w http.ResponseWriter, r *http.Request, err error) {
	var he httpError
	if errors.As(err, &he) {
		_ = httperr.Write(w, he.HTTPError())
		return
	}
	_ = httperr.Write(w, httperr.NewInvalidRequest(err.Error(), httperr.CodeContextExtraction))
}
