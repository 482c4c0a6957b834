// Package health provides liveness and readiness probes for shuttle.
//
// # Endpoints
//
//   - /healthz: liveness, 200 while the process runs
//   - /readyz: readiness, runs every registered component check
//   - /version: build information
//
// # Usage
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("config", func(ctx context.Context) error {
//	    if config.GetConfig() == nil {
//	        return errors.New("config not loaded")
//	    }
//	    return nil
//	})
//	router.Get("/readyz", checker.ReadinessHandler())
//
// During graceful shutdown the server calls MarkShuttingDown so readiness
// answers 503 while open event streams drain.
package health
