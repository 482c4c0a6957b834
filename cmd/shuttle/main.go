// Shuttle serves request-scoped HTTP endpoints and Server-Sent Event
// streams.
//
// Every request runs inside a scope seeded from its headers, body, client
// certificate, API key or bearer token and carries a time-ordered request
// identifier. Event streams are resumable through Last-Event-ID.
//
// Usage:
//
//	# Start the server with the default configuration
//	shuttle serve
//
//	# Start with a custom configuration file
//	shuttle serve --config /etc/shuttle/config.yaml
//
//	# Validate a configuration file
//	shuttle config validate --config config.yaml
//
//	# Decode a request identifier from a log line
//	shuttle id decode req_0190f5a3c2d87c1e9a4b5f6e7d8c9b0a
package main

func main() {
	Execute()
}
