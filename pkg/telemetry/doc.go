// Package telemetry groups shuttle's observability packages.
//
// # Components
//
//   - logging: log/slog handlers with request context and redaction
//   - metrics: Prometheus collectors for requests, scopes and streams
//   - tracing: OpenTelemetry spans exported over OTLP
//   - health: liveness and readiness probes
//
// Each component is configured from the telemetry section of the
// configuration file and wired together by the server package.
package telemetry
