package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// Logging logs one record per request when the handler returns or panics. The
// level follows the status: error for 5xx, warn for 4xx, info otherwise. A
// panic before the head is sent is logged as 500 with "panicked": true. Request
// and trace identifiers come from the logger's context handler.
//
// Log format (JSON):
//
//	{
//	  "time": "2026-10-19T10:30:00Z",
//	  "level": "INFO",
//	  "msg": "request completed",
//	  "request_id": "req_0192a4c5...",
//	  "method": "GET",
//	  "path": "/v1/events/clock",
//	  "route": "/v1/events/clock",
//	  "status": 200,
//	  "bytes": 5120,
//	  "duration_ms": 61250,
//	  "remote_addr": "192.168.1.100:54321",
//	  "user_agent": "curl/8.5.0"
//	}
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			logger.DebugContext(r.Context(), "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			returned := false
			defer func() {
				status := rw.Status()
				if !returned && !rw.Committed() {
					// Recovery answers an uncommitted panic with a 500.
					status = http.StatusInternalServerError
				}
				level := slog.LevelInfo
				if status >= 500 {
					level = slog.LevelError
				} else if status >= 400 {
					level = slog.LevelWarn
				}

				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"route", routePattern(r),
					"status", status,
					"bytes", rw.bytes,
					"duration_ms", time.Since(start).Milliseconds(),
					"remote_addr", r.RemoteAddr,
					"user_agent", r.UserAgent(),
				}
				if !returned {
					attrs = append(attrs, "panicked", true)
				}
				logger.Log(r.Context(), level, "request completed", attrs...)
			}()

			next.ServeHTTP(rw, r)
			returned = true
		})
	}
}
