package limits

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"mercator-hq/shuttle/pkg/httperr"
	"mercator-hq/shuttle/pkg/scope"
	"mercator-hq/shuttle/pkg/scope/extract"
)

// Response headers describing the limit that applied.
const (
	HeaderLimit     = "X-RateLimit-Limit"
	HeaderRemaining = "X-RateLimit-Remaining"
)

// KeyFunc derives the caller key of a request.
type KeyFunc func(r *http.Request) string

// CallerKey keys requests by the scope subject, falling back to the
// client address for anonymous callers.
func CallerKey(r *http.Request) string {
	if subject, ok, _ := scope.Value[string](r.Context(), extract.KeySubject); ok && subject != "" {
		return "subject:" + subject
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	key    KeyFunc
	logger *slog.Logger
}

// WithKeyFunc replaces CallerKey.
func WithKeyFunc(fn KeyFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.key = fn
	}
}

// WithLogger sets the logger used for rejections.
func WithLogger(logger *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.logger = logger
	}
}

// Middleware rejects requests over the caller's limits with 429 and a
// Retry-After header. Admitted requests hold their slot until the handler
// returns, which for a stream is when it ends.
func Middleware(l *Limiter, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{key: CallerKey, logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := cfg.key(r)
			release, d := l.Acquire(key)
			if !d.Allowed {
				cfg.logger.WarnContext(r.Context(), "stream limit reached",
					"key", key,
					"reason", d.Reason,
					"retry_after", d.RetryAfter,
				)
				writeRejection(w, d)
				return
			}
			defer release()

			if d.Limit > 0 {
				w.Header().Set(HeaderLimit, strconv.FormatInt(d.Limit, 10))
				w.Header().Set(HeaderRemaining, strconv.FormatInt(d.Remaining, 10))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeRejection(w http.ResponseWriter, d Decision) {
	h := w.Header()
	h.Set("Retry-After", strconv.Itoa(retryAfterSeconds(d.RetryAfter)))
	h.Set(HeaderLimit, strconv.FormatInt(d.Limit, 10))
	h.Set(HeaderRemaining, "0")

	msg, code := "too many open streams", httperr.CodeTooManyStreams
	if d.Reason == ReasonRate {
		msg, code = "streams are being opened too quickly", httperr.CodeRateLimited
	}
	_ = httperr.Write(w, httperr.New(msg, httperr.TypeRateLimit, code))
}

// retryAfterSeconds rounds up so clients never retry early. The header
// has whole-second resolution.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}
