// Package server runs the shuttle HTTP server.
//
// # Usage
//
//	srv := server.New(cfg,
//	    server.WithLogger(logger),
//	    server.WithCollector(collector),
//	    server.WithTracer(tracer),
//	    server.WithRoutes(demo.Routes(deps)),
//	)
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// # Routes
//
//   - GET /healthz: liveness
//   - GET /readyz: readiness, 503 while shutting down
//   - GET /version: build information
//   - GET /metrics: Prometheus metrics (path configurable)
//
// Routes registered with WithRoutes run inside a request scope seeded from
// the request id, mapped headers and body fields, client certificates, API
// keys and bearer tokens, in that order.
//
// # Graceful Shutdown
//
// Cancelling the context passed to Start, or calling Shutdown:
//  1. Marks readiness as shutting down
//  2. Stops accepting connections
//  3. Cancels the context of every open request, which ends event streams
//  4. Waits up to shutdown_timeout for handlers to return, then closes
//     remaining connections
package server
