// Package tracing provides OpenTelemetry distributed tracing for shuttle.
//
// # Overview
//
// New configures the OpenTelemetry SDK from config.TracingConfig, exports
// spans to an OTLP gRPC collector and installs the W3C Trace Context and
// Baggage propagators globally. The server's tracing middleware starts one
// server span per request; streamed responses keep that span open until the
// last chunk is written or the client goes away.
//
// # Trace Context Propagation
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//	tracestate: congo=t61rcWkgMzE
//
// Incoming context is honoured even when tracing is disabled, so log
// records still carry the caller's trace ID.
//
// # Sampling Strategies
//
//   - always: sample all traces (development)
//   - never: sample no traces
//   - ratio: sample a fraction of root traces (production)
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, tracing.WithServiceVersion(version))
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
package tracing
