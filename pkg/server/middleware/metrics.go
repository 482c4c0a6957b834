package middleware

import (
	"net/http"
	"time"
)

// RequestRecorder receives request measurements.
// *metrics.Collector implements it.
type RequestRecorder interface {
	RequestStarted()
	RequestFinished(method, route string, status int, duration time.Duration, size int64)
}

// Metrics reports every request to rec, labelled by route pattern rather
// than raw path to bound label cardinality.
func Metrics(rec RequestRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			rec.RequestStarted()
			defer func() {
				rec.RequestFinished(r.Method, routePattern(r), rw.Status(), time.Since(start), rw.bytes)
			}()

			next.ServeHTTP(rw, r)
		})
	}
}
