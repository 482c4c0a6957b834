package config

import "time"

// Config is the root configuration structure for shuttle.
type Config struct {
	// Server contains HTTP server configuration including listen address,
	// timeouts and CORS.
	Server ServerConfig `yaml:"server"`

	// RequestID controls correlation identifier assignment.
	RequestID RequestIDConfig `yaml:"request_id"`

	// Context configures how request scopes are seeded.
	Context ContextConfig `yaml:"context"`

	// SSE contains Server-Sent Events streaming settings.
	SSE SSEConfig `yaml:"sse"`

	// Journal configures event retention for Last-Event-ID replay.
	Journal JournalConfig `yaml:"journal"`

	// Limits bounds event streams per caller.
	Limits LimitsConfig `yaml:"limits"`

	// Security contains response hardening headers.
	Security SecurityConfig `yaml:"security"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address" validate:"required,hostname_port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout" validate:"gte=0"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. Event streams are long lived, so zero (no timeout) is the
	// default.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout" validate:"gte=0"`

	// ShutdownTimeout is the maximum duration to wait for in-flight
	// requests during graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes" validate:"gte=0"`

	// CORS contains Cross-Origin Resource Sharing configuration.
	CORS CORSConfig `yaml:"cors"`

	// TLS configures HTTPS termination.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig configures HTTPS termination and optional client certificates.
type TLSConfig struct {
	// Enabled serves HTTPS instead of plain HTTP.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the PEM-encoded certificate chain.
	CertFile string `yaml:"cert_file" validate:"required_if=Enabled true"`

	// KeyFile is the PEM-encoded private key.
	KeyFile string `yaml:"key_file" validate:"required_if=Enabled true"`

	// MinVersion is the lowest accepted protocol version.
	// Options: "1.2", "1.3"
	// Default: "1.3"
	MinVersion string `yaml:"min_version" validate:"oneof=1.2 1.3"`

	// ReloadInterval is how often the certificate files are checked for
	// changes.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval" validate:"gte=0"`

	// ClientCAFile enables client certificate verification against the
	// PEM-encoded CA bundle.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuth controls client certificate handling when ClientCAFile is set.
	// Options: "require", "verify_if_given"
	// Default: "require"
	ClientAuth string `yaml:"client_auth" validate:"oneof=require verify_if_given"`

	// IdentitySource selects the certificate field copied into the request
	// scope under the "client" key.
	// Options: "subject.CN", "subject.OU", "subject.O", "SAN"
	// Default: "subject.CN"
	IdentitySource string `yaml:"identity_source" validate:"oneof=subject.CN subject.OU subject.O SAN"`
}

// CORSConfig contains CORS (Cross-Origin Resource Sharing) configuration.
type CORSConfig struct {
	// Enabled controls whether CORS is enabled.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// AllowedOrigins is a list of allowed origins for CORS requests.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is a list of allowed HTTP methods for CORS requests.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is a list of allowed HTTP headers for CORS requests.
	// Default: ["Authorization", "Content-Type", "Last-Event-ID", "X-Request-ID"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// ExposedHeaders is a list of headers that are exposed to the client.
	// Default: ["X-Request-ID"]
	ExposedHeaders []string `yaml:"exposed_headers"`

	// MaxAge is the maximum age (in seconds) for preflight request cache.
	// Default: 3600
	MaxAge int `yaml:"max_age" validate:"gte=0"`

	// AllowCredentials controls whether credentials are allowed.
	// Default: false
	AllowCredentials bool `yaml:"allow_credentials"`
}

// RequestIDConfig controls correlation identifiers.
type RequestIDConfig struct {
	// Enabled controls whether identifiers are assigned.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Header is the response header carrying the identifier.
	// Default: "X-Request-ID"
	Header string `yaml:"header" validate:"required_if=Enabled true"`

	// TrustIncoming reuses a well-formed identifier sent by the client.
	// Default: false
	TrustIncoming bool `yaml:"trust_incoming"`
}

// ContextConfig configures the extractors that seed each request scope.
type ContextConfig struct {
	// Headers maps request header names to scope keys.
	Headers map[string]string `yaml:"headers"`

	// BodyFields maps top-level JSON body fields to scope keys.
	BodyFields map[string]string `yaml:"body_fields"`

	// MaxBodyBytes bounds how much of a JSON body is read for BodyFields.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes" validate:"gte=0"`

	// JWT configures bearer token claim extraction.
	JWT JWTConfig `yaml:"jwt"`

	// APIKeys configures API key authentication.
	APIKeys APIKeysConfig `yaml:"api_keys"`

	// LogKeys lists scope keys added to every log record of a request.
	// Default: ["subject", "tenant"]
	LogKeys []string `yaml:"log_keys"`
}

// JWTConfig configures bearer token verification.
type JWTConfig struct {
	// Enabled turns on bearer token extraction.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Secret is the HMAC key. Required when enabled.
	Secret string `yaml:"secret" validate:"required_if=Enabled true"`

	// Issuer is the expected iss claim.
	Issuer string `yaml:"issuer"`

	// Audience is the expected aud claim.
	Audience string `yaml:"audience"`

	// Required rejects requests without a bearer token.
	// Default: false
	Required bool `yaml:"required"`
}

// APIKeysConfig configures API key authentication. A valid key seeds the
// scope with its subject and tenant.
type APIKeysConfig struct {
	// Enabled turns on API key extraction.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Header carries the key.
	// Default: "X-API-Key"
	Header string `yaml:"header"`

	// QueryParam carries the key for clients that cannot set headers,
	// such as browser EventSource. Empty disables it.
	QueryParam string `yaml:"query_param"`

	// Required rejects requests without a key.
	// Default: false
	Required bool `yaml:"required"`

	// Keys lists the accepted keys. Key values may be ${secret:name}
	// references.
	Keys []APIKeyConfig `yaml:"keys" validate:"dive"`
}

// APIKeyConfig describes one accepted API key.
type APIKeyConfig struct {
	// Key is the secret value presented by the client.
	Key string `yaml:"key" validate:"required"`

	// Subject is copied into the scope's subject key.
	Subject string `yaml:"subject" validate:"required"`

	// Tenant is copied into the scope's tenant key when set.
	Tenant string `yaml:"tenant"`

	// Disabled rejects the key without removing it.
	Disabled bool `yaml:"disabled"`
}

// SSEConfig contains Server-Sent Events settings.
type SSEConfig struct {
	// HeartbeatInterval is the silence after which a keep-alive comment is
	// sent. Zero disables heartbeats.
	// Default: 15s
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" validate:"gte=0"`

	// Retry is the reconnection delay in milliseconds advertised to
	// clients. Zero omits the retry field.
	// Default: 3000
	Retry int `yaml:"retry" validate:"gte=0"`

	// ClockInterval is the tick interval of the clock stream.
	// Default: 1s
	ClockInterval time.Duration `yaml:"clock_interval" validate:"gt=0"`
}

// JournalConfig configures event retention.
type JournalConfig struct {
	// Enabled turns on journaling and Last-Event-ID replay.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the store.
	// Options: "memory", "sqlite", "postgres"
	// Default: "memory"
	Backend string `yaml:"backend" validate:"oneof=memory sqlite postgres"`

	// Capacity is the per-stream entry limit of the memory backend.
	// Default: 1024
	Capacity int `yaml:"capacity" validate:"gte=0"`

	// SQLite configures the sqlite backend.
	SQLite JournalSQLiteConfig `yaml:"sqlite"`

	// Postgres configures the postgres backend.
	Postgres JournalPostgresConfig `yaml:"postgres"`

	// Retention is how long entries are kept.
	// Default: 1h
	Retention time.Duration `yaml:"retention" validate:"gte=0"`

	// PruneSchedule is a cron expression for pruning. Empty disables it.
	// Default: "*/5 * * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// LimitsConfig bounds event streams per caller. Callers are keyed by
// subject, or by client address when anonymous.
type LimitsConfig struct {
	// Enabled turns the limits on.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// MaxStreams is the number of streams a caller may hold open at once.
	// Zero disables the concurrency limit.
	// Default: 8
	MaxStreams int `yaml:"max_streams" validate:"gte=0"`

	// StreamsPerSecond is the average rate at which a caller may open
	// streams. Zero disables the rate limit.
	// Default: 2
	StreamsPerSecond float64 `yaml:"streams_per_second" validate:"gte=0"`

	// Burst is how many streams may be opened at once above the rate.
	// Default: 10
	Burst int `yaml:"burst" validate:"gte=0"`

	// IdleTTL is how long an idle caller's state is kept.
	// Default: 10m
	IdleTTL time.Duration `yaml:"idle_ttl" validate:"gte=0"`
}

// JournalSQLiteConfig contains SQLite journal settings.
type JournalSQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/journal.db"
	Path string `yaml:"path"`

	// Driver selects the database/sql driver.
	// Options: "sqlite" (pure Go), "sqlite3" (cgo)
	// Default: "sqlite"
	Driver string `yaml:"driver" validate:"oneof=sqlite sqlite3"`

	// WALMode enables Write-Ahead Logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`

	// BusyTimeout is how long to wait for a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout" validate:"gte=0"`
}

// JournalPostgresConfig contains PostgreSQL journal settings.
type JournalPostgresConfig struct {
	// DSN is the connection string. Supports ${secret:name} references.
	DSN string `yaml:"dsn"`

	// MaxConns is the maximum number of pooled connections.
	// Default: 25
	MaxConns int32 `yaml:"max_conns" validate:"gte=0"`

	// MinConns is the number of idle connections kept open.
	// Default: 2
	MinConns int32 `yaml:"min_conns" validate:"gte=0"`

	// MaxConnLifetime bounds how long a connection is reused.
	// Default: 5m
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" validate:"gte=0"`
}

// SecurityConfig contains response hardening headers.
type SecurityConfig struct {
	// DefaultHeaders are added to every response that does not set them.
	DefaultHeaders map[string]string `yaml:"default_headers"`

	// ContentSecurityPolicy is the Content-Security-Policy value. Empty
	// disables the header.
	ContentSecurityPolicy string `yaml:"content_security_policy"`

	// HSTS configures Strict-Transport-Security.
	HSTS HSTSConfig `yaml:"hsts"`

	// FrameOptions is the X-Frame-Options value.
	// Options: "", "DENY", "SAMEORIGIN"
	// Default: "DENY"
	FrameOptions string `yaml:"frame_options" validate:"omitempty,oneof=DENY SAMEORIGIN"`

	// NoSniff sets X-Content-Type-Options: nosniff.
	// Default: true
	NoSniff bool `yaml:"no_sniff"`

	// ReferrerPolicy is the Referrer-Policy value. Empty disables it.
	// Default: "no-referrer"
	ReferrerPolicy string `yaml:"referrer_policy"`

	// Secrets configures secret reference resolution.
	Secrets SecretsConfig `yaml:"secrets"`
}

// HSTSConfig configures Strict-Transport-Security.
type HSTSConfig struct {
	// Enabled controls whether the header is sent.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// MaxAge is the policy lifetime.
	// Default: 8760h (one year)
	MaxAge time.Duration `yaml:"max_age" validate:"gte=0"`

	// IncludeSubdomains adds includeSubDomains.
	IncludeSubdomains bool `yaml:"include_subdomains"`

	// Preload adds preload.
	Preload bool `yaml:"preload"`
}

// SecretsConfig configures where ${secret:name} references are resolved.
type SecretsConfig struct {
	// EnvPrefix is prepended to the upper-cased secret name to form the
	// environment variable looked up.
	// Default: "SHUTTLE_SECRET_"
	EnvPrefix string `yaml:"env_prefix"`

	// Dir is a directory holding one file per secret. Empty disables the
	// file provider.
	Dir string `yaml:"dir"`

	// Watch invalidates cached file secrets when the directory changes.
	// Default: false
	Watch bool `yaml:"watch"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format" validate:"oneof=json text"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactKeys lists attribute keys whose values are masked.
	// Default: ["authorization", "token", "secret", "password"]
	RedactKeys []string `yaml:"redact_keys"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path" validate:"omitempty,startswith=/"`

	// Namespace is the metric name prefix.
	// Default: "shuttle"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "http"
	Subsystem string `yaml:"subsystem"`

	// RequestDurationBuckets defines histogram buckets for request duration (seconds).
	// Default: [0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120]
	RequestDurationBuckets []float64 `yaml:"request_duration_buckets"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler" validate:"oneof=always never ratio"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint" validate:"required_if=Enabled true"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// ServiceName is the service.name resource attribute.
	// Default: "shuttle"
	ServiceName string `yaml:"service_name"`
}
