package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 0
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// TLS defaults
	DefaultTLSMinVersion     = "1.3"
	DefaultTLSReloadInterval = 5 * time.Minute
	DefaultTLSClientAuth     = "require"
	DefaultTLSIdentitySource = "subject.CN"

	// CORS defaults
	DefaultCORSEnabled = true
	DefaultCORSMaxAge  = 3600 // 1 hour

	// Request ID defaults
	DefaultRequestIDEnabled = true
	DefaultRequestIDHeader  = "X-Request-ID"

	// Context defaults
	DefaultContextMaxBodyBytes = int64(1048576)
	DefaultAPIKeyHeader        = "X-API-Key"

	// SSE defaults
	DefaultSSEHeartbeatInterval = 15 * time.Second
	DefaultSSERetry             = 3000
	DefaultSSEClockInterval     = time.Second

	// Journal defaults
	DefaultJournalEnabled       = true
	DefaultJournalBackend       = "memory"
	DefaultJournalCapacity      = 1024
	DefaultJournalRetention     = time.Hour
	DefaultJournalPruneSchedule = "*/5 * * * *"
	DefaultJournalSQLitePath    = "data/journal.db"
	DefaultJournalSQLiteDriver  = "sqlite"
	DefaultJournalSQLiteWALMode = true
	DefaultJournalSQLiteBusy    = 5 * time.Second
	DefaultJournalPGMaxConns    = int32(25)
	DefaultJournalPGMinConns    = int32(2)
	DefaultJournalPGLifetime    = 5 * time.Minute

	// Limits defaults
	DefaultLimitsMaxStreams       = 8
	DefaultLimitsStreamsPerSecond = 2.0
	DefaultLimitsBurst            = 10
	DefaultLimitsIdleTTL          = 10 * time.Minute

	// Security defaults
	DefaultFrameOptions    = "DENY"
	DefaultNoSniff         = true
	DefaultReferrerPolicy  = "no-referrer"
	DefaultHSTSMaxAge      = 365 * 24 * time.Hour
	DefaultSecretEnvPrefix = "SHUTTLE_SECRET_"

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "shuttle"
	DefaultMetricsSubsystem = "http"

	// Tracing defaults
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingServiceName = "shuttle"
)

// Default slice values.
var (
	DefaultCORSAllowedOrigins = []string{"*"}
	DefaultCORSAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	DefaultCORSAllowedHeaders = []string{"Authorization", "Content-Type", "Last-Event-ID", "X-Request-ID"}
	DefaultCORSExposedHeaders = []string{"X-Request-ID"}
	DefaultContextLogKeys     = []string{"subject", "tenant"}
	DefaultRedactKeys         = []string{"authorization", "token", "secret", "password"}
	DefaultDurationBuckets    = []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120}
)

// Default returns a configuration with every default applied. LoadConfig
// decodes YAML on top of it, so booleans that default to true can still be
// switched off in the file.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			CORS: CORSConfig{Enabled: DefaultCORSEnabled},
		},
		RequestID: RequestIDConfig{Enabled: DefaultRequestIDEnabled},
		Journal: JournalConfig{
			Enabled: DefaultJournalEnabled,
			SQLite:  JournalSQLiteConfig{WALMode: DefaultJournalSQLiteWALMode},
		},
		Limits: LimitsConfig{
			MaxStreams:       DefaultLimitsMaxStreams,
			StreamsPerSecond: DefaultLimitsStreamsPerSecond,
			Burst:            DefaultLimitsBurst,
		},
		Security: SecurityConfig{NoSniff: DefaultNoSniff},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Boolean
// fields are left alone because false cannot be told apart from unset.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// TLS defaults
	tls := &cfg.Server.TLS
	if tls.MinVersion == "" {
		tls.MinVersion = DefaultTLSMinVersion
	}
	if tls.ReloadInterval == 0 {
		tls.ReloadInterval = DefaultTLSReloadInterval
	}
	if tls.ClientAuth == "" {
		tls.ClientAuth = DefaultTLSClientAuth
	}
	if tls.IdentitySource == "" {
		tls.IdentitySource = DefaultTLSIdentitySource
	}

	// CORS defaults
	cors := &cfg.Server.CORS
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = append([]string(nil), DefaultCORSAllowedOrigins...)
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = append([]string(nil), DefaultCORSAllowedMethods...)
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = append([]string(nil), DefaultCORSAllowedHeaders...)
	}
	if len(cors.ExposedHeaders) == 0 {
		cors.ExposedHeaders = append([]string(nil), DefaultCORSExposedHeaders...)
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}

	// Request ID defaults
	if cfg.RequestID.Header == "" {
		cfg.RequestID.Header = DefaultRequestIDHeader
	}

	// Context defaults
	if cfg.Context.MaxBodyBytes == 0 {
		cfg.Context.MaxBodyBytes = DefaultContextMaxBodyBytes
	}
	if cfg.Context.APIKeys.Header == "" {
		cfg.Context.APIKeys.Header = DefaultAPIKeyHeader
	}
	if cfg.Context.LogKeys == nil {
		cfg.Context.LogKeys = append([]string(nil), DefaultContextLogKeys...)
	}

	// SSE defaults
	if cfg.SSE.HeartbeatInterval == 0 {
		cfg.SSE.HeartbeatInterval = DefaultSSEHeartbeatInterval
	}
	if cfg.SSE.Retry == 0 {
		cfg.SSE.Retry = DefaultSSERetry
	}
	if cfg.SSE.ClockInterval == 0 {
		cfg.SSE.ClockInterval = DefaultSSEClockInterval
	}

	// Journal defaults
	if cfg.Journal.Backend == "" {
		cfg.Journal.Backend = DefaultJournalBackend
	}
	if cfg.Journal.Capacity == 0 {
		cfg.Journal.Capacity = DefaultJournalCapacity
	}
	if cfg.Journal.Retention == 0 {
		cfg.Journal.Retention = DefaultJournalRetention
	}
	if cfg.Journal.PruneSchedule == "" {
		cfg.Journal.PruneSchedule = DefaultJournalPruneSchedule
	}
	if cfg.Journal.SQLite.Path == "" {
		cfg.Journal.SQLite.Path = DefaultJournalSQLitePath
	}
	if cfg.Journal.SQLite.Driver == "" {
		cfg.Journal.SQLite.Driver = DefaultJournalSQLiteDriver
	}
	if cfg.Journal.SQLite.BusyTimeout == 0 {
		cfg.Journal.SQLite.BusyTimeout = DefaultJournalSQLiteBusy
	}
	if cfg.Journal.Postgres.MaxConns == 0 {
		cfg.Journal.Postgres.MaxConns = DefaultJournalPGMaxConns
	}
	if cfg.Journal.Postgres.MinConns == 0 {
		cfg.Journal.Postgres.MinConns = min(DefaultJournalPGMinConns, cfg.Journal.Postgres.MaxConns)
	}
	if cfg.Journal.Postgres.MaxConnLifetime == 0 {
		cfg.Journal.Postgres.MaxConnLifetime = DefaultJournalPGLifetime
	}

	// Limits defaults. Zero max_streams and streams_per_second disable
	// their limit, so only the TTL is filled here; Default sets the rest.
	if cfg.Limits.IdleTTL == 0 {
		cfg.Limits.IdleTTL = DefaultLimitsIdleTTL
	}

	// Security defaults
	if cfg.Security.FrameOptions == "" {
		cfg.Security.FrameOptions = DefaultFrameOptions
	}
	if cfg.Security.ReferrerPolicy == "" {
		cfg.Security.ReferrerPolicy = DefaultReferrerPolicy
	}
	if cfg.Security.HSTS.MaxAge == 0 {
		cfg.Security.HSTS.MaxAge = DefaultHSTSMaxAge
	}
	if cfg.Security.Secrets.EnvPrefix == "" {
		cfg.Security.Secrets.EnvPrefix = DefaultSecretEnvPrefix
	}

	// Logging defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Logging.RedactKeys == nil {
		cfg.Telemetry.Logging.RedactKeys = append([]string(nil), DefaultRedactKeys...)
	}

	// Metrics defaults
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if len(cfg.Telemetry.Metrics.RequestDurationBuckets) == 0 {
		cfg.Telemetry.Metrics.RequestDurationBuckets = append([]float64(nil), DefaultDurationBuckets...)
	}

	// Tracing defaults
	tr := &cfg.Telemetry.Tracing
	if tr.Sampler == "" {
		tr.Sampler = DefaultTracingSampler
	}
	if tr.SampleRatio == 0 && tr.Sampler == DefaultTracingSampler {
		tr.SampleRatio = DefaultTracingSampleRatio
	}
	if tr.Endpoint == "" {
		tr.Endpoint = DefaultTracingEndpoint
	}
	if tr.Timeout == 0 {
		tr.Timeout = DefaultTracingTimeout
	}
	if tr.ServiceName == "" {
		tr.ServiceName = DefaultTracingServiceName
	}
}
