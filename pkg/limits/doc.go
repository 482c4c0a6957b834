// Package limits bounds how many event streams each caller may hold open
// and how quickly it may open new ones.
//
// # Overview
//
// A Limiter keeps two limits per caller key:
//
//   - Concurrency: a ConcurrentLimiter counting open streams
//   - Rate: a TokenBucket refilled at streams_per_second with room for
//     burst streams at once
//
// Callers are keyed by scope subject, or by client address when no
// subject was extracted. State for a caller is created on first use and
// swept once it has been idle for the configured TTL.
//
// # Usage
//
//	l := limits.New(&cfg.Limits, limits.WithObserver(collector))
//	r.With(limits.Middleware(l)).Get("/v1/events/clock", clock)
//
// Rejected requests get 429 with Retry-After and the usual JSON error
// body. The middleware holds the caller's slot until the handler returns,
// so the concurrency limit covers the whole life of a stream.
//
// # Thread Safety
//
// Limiter, ConcurrentLimiter and TokenBucket are safe for concurrent use.
package limits
