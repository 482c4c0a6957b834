// Package metrics provides Prometheus metrics collection for shuttle.
//
// # Overview
//
// One Collector owns every metric and is wired into three places:
//   - the HTTP metrics middleware calls RequestStarted and RequestFinished
//   - the context middleware takes it as its scope.Observer
//   - stream.SetObserver installs it for every streamed response
//
// # Metrics Categories
//
//   - Request Metrics: request count, duration, response size, in-flight gauge
//   - Scope Metrics: open scopes, scopes opened, extraction failures
//   - Stream Metrics: active streams, chunks, bytes, outcomes, lifetime
//
// Go runtime and process metrics are registered as well.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	stream.SetObserver(collector)
//	handler = scope.Middleware(scope.WithObserver(collector))(handler)
//	router.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// Route labels are the matched route pattern. Past DefaultMaxRoutes distinct
// values further routes are recorded as "other".
//
// When MetricsConfig.Enabled is false every recording method is a no-op.
package metrics
