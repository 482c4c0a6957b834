package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/shuttle/pkg/httperr"
)

// Recovery recovers from panics in handlers. A panic before anything was
// written is answered with a 500 JSON error. Once the response head is
// committed, as with a running event stream, the status can no longer
// change, so the panic is logged and the connection is aborted with
// http.ErrAbortHandler. The client then sees a truncated body rather than a
// clean end of stream. http.ErrAbortHandler raised by the handler is
// re-raised as is.
//
// Example usage:
//
//	router.Use(middleware.Recovery(logger))
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := wrap(w)

			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"error", v,
					"method", r.Method,
					"path", r.URL.Path,
					"committed", rw.Committed(),
					"stack", string(debug.Stack()),
				)

				if rw.Committed() {
					panic(http.ErrAbortHandler)
				}
				_ = httperr.Write(rw, httperr.NewServerError("An internal error occurred. Please try again later."))
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
