// Package logging builds the service's log/slog logger.
//
// # Overview
//
// New wraps a JSON or text handler with two additions:
//   - ContextHandler copies request-scoped fields into every record logged
//     through the *Context methods: the request ID, the active trace and
//     span IDs and any configured scope keys.
//   - Redactor masks attributes whose key looks sensitive (authorization,
//     token, secret, password) and credential patterns inside string values.
//
// # Usage
//
//	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout, cfg.Context.LogKeys...)
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	// Inside a handler
//	logger.InfoContext(r.Context(), "event sent", "stream", "clock")
//	// {"level":"INFO","msg":"event sent","stream":"clock","request_id":"req_0190...","tenant":"acme"}
//
// # Redaction
//
//   - authorization=Bearer abc.def → "Bear***"
//   - "login with password=hunter2" → "login with password=***"
//   - any value matching a compact JWT → "jwt-***"
package logging
