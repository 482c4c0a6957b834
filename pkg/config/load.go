package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment variable override.
const EnvPrefix = "SHUTTLE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// Values absent from the file keep their defaults. The result is validated.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults without validating. Unknown
// fields are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention SHUTTLE_SECTION_FIELD (e.g., SHUTTLE_SERVER_LISTEN_ADDRESS).
// An empty path starts from the defaults.
//
// The loading sequence is:
// 1. Load YAML from file on top of the defaults
// 2. Apply environment variable overrides
// 3. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		if cfg, err = Parse(data); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

// envOverride binds one environment variable to one field.
type envOverride struct {
	name  string
	apply func(val string) error
}

func stringVar(p *string) func(string) error {
	return func(v string) error { *p = v; return nil }
}

func boolVar(p *bool) func(string) error {
	return func(v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*p = b
		return nil
	}
}

func intVar(p *int) func(string) error {
	return func(v string) error {
		i, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*p = i
		return nil
	}
}

func floatVar(p *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*p = f
		return nil
	}
}

func durationVar(p *time.Duration) func(string) error {
	return func(v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*p = d
		return nil
	}
}

func listVar(p *[]string) func(string) error {
	return func(v string) error {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*p = out
		return nil
	}
}

// applyEnvOverrides applies SHUTTLE_* variables to cfg. A malformed value
// is an error rather than being silently ignored.
func applyEnvOverrides(cfg *Config) error {
	overrides := []envOverride{
		// Server
		{"SERVER_LISTEN_ADDRESS", stringVar(&cfg.Server.ListenAddress)},
		{"SERVER_READ_TIMEOUT", durationVar(&cfg.Server.ReadTimeout)},
		{"SERVER_WRITE_TIMEOUT", durationVar(&cfg.Server.WriteTimeout)},
		{"SERVER_IDLE_TIMEOUT", durationVar(&cfg.Server.IdleTimeout)},
		{"SERVER_SHUTDOWN_TIMEOUT", durationVar(&cfg.Server.ShutdownTimeout)},
		{"SERVER_MAX_HEADER_BYTES", intVar(&cfg.Server.MaxHeaderBytes)},
		{"SERVER_TLS_ENABLED", boolVar(&cfg.Server.TLS.Enabled)},
		{"SERVER_TLS_CERT_FILE", stringVar(&cfg.Server.TLS.CertFile)},
		{"SERVER_TLS_KEY_FILE", stringVar(&cfg.Server.TLS.KeyFile)},
		{"SERVER_TLS_CLIENT_CA_FILE", stringVar(&cfg.Server.TLS.ClientCAFile)},
		{"SERVER_CORS_ENABLED", boolVar(&cfg.Server.CORS.Enabled)},
		{"SERVER_CORS_ALLOWED_ORIGINS", listVar(&cfg.Server.CORS.AllowedOrigins)},

		// Request ID
		{"REQUEST_ID_ENABLED", boolVar(&cfg.RequestID.Enabled)},
		{"REQUEST_ID_HEADER", stringVar(&cfg.RequestID.Header)},
		{"REQUEST_ID_TRUST_INCOMING", boolVar(&cfg.RequestID.TrustIncoming)},

		// Context
		{"CONTEXT_JWT_ENABLED", boolVar(&cfg.Context.JWT.Enabled)},
		{"CONTEXT_JWT_SECRET", stringVar(&cfg.Context.JWT.Secret)},
		{"CONTEXT_JWT_ISSUER", stringVar(&cfg.Context.JWT.Issuer)},
		{"CONTEXT_JWT_AUDIENCE", stringVar(&cfg.Context.JWT.Audience)},
		{"CONTEXT_JWT_REQUIRED", boolVar(&cfg.Context.JWT.Required)},
		{"CONTEXT_API_KEYS_ENABLED", boolVar(&cfg.Context.APIKeys.Enabled)},
		{"CONTEXT_API_KEYS_REQUIRED", boolVar(&cfg.Context.APIKeys.Required)},
		{"CONTEXT_LOG_KEYS", listVar(&cfg.Context.LogKeys)},

		// SSE
		{"SSE_HEARTBEAT_INTERVAL", durationVar(&cfg.SSE.HeartbeatInterval)},
		{"SSE_RETRY", intVar(&cfg.SSE.Retry)},
		{"SSE_CLOCK_INTERVAL", durationVar(&cfg.SSE.ClockInterval)},

		// Journal
		{"JOURNAL_ENABLED", boolVar(&cfg.Journal.Enabled)},
		{"JOURNAL_BACKEND", stringVar(&cfg.Journal.Backend)},
		{"JOURNAL_CAPACITY", intVar(&cfg.Journal.Capacity)},
		{"JOURNAL_RETENTION", durationVar(&cfg.Journal.Retention)},
		{"JOURNAL_PRUNE_SCHEDULE", stringVar(&cfg.Journal.PruneSchedule)},
		{"JOURNAL_SQLITE_PATH", stringVar(&cfg.Journal.SQLite.Path)},
		{"JOURNAL_SQLITE_DRIVER", stringVar(&cfg.Journal.SQLite.Driver)},
		{"JOURNAL_POSTGRES_DSN", stringVar(&cfg.Journal.Postgres.DSN)},

		// Limits
		{"LIMITS_ENABLED", boolVar(&cfg.Limits.Enabled)},
		{"LIMITS_MAX_STREAMS", intVar(&cfg.Limits.MaxStreams)},
		{"LIMITS_STREAMS_PER_SECOND", floatVar(&cfg.Limits.StreamsPerSecond)},
		{"LIMITS_BURST", intVar(&cfg.Limits.Burst)},

		// Security
		{"SECURITY_CONTENT_SECURITY_POLICY", stringVar(&cfg.Security.ContentSecurityPolicy)},
		{"SECURITY_HSTS_ENABLED", boolVar(&cfg.Security.HSTS.Enabled)},
		{"SECURITY_FRAME_OPTIONS", stringVar(&cfg.Security.FrameOptions)},
		{"SECURITY_REFERRER_POLICY", stringVar(&cfg.Security.ReferrerPolicy)},
		{"SECURITY_SECRETS_DIR", stringVar(&cfg.Security.Secrets.Dir)},

		// Telemetry
		{"TELEMETRY_LOGGING_LEVEL", stringVar(&cfg.Telemetry.Logging.Level)},
		{"TELEMETRY_LOGGING_FORMAT", stringVar(&cfg.Telemetry.Logging.Format)},
		{"TELEMETRY_LOGGING_ADD_SOURCE", boolVar(&cfg.Telemetry.Logging.AddSource)},
		{"TELEMETRY_METRICS_ENABLED", boolVar(&cfg.Telemetry.Metrics.Enabled)},
		{"TELEMETRY_METRICS_PATH", stringVar(&cfg.Telemetry.Metrics.Path)},
		{"TELEMETRY_TRACING_ENABLED", boolVar(&cfg.Telemetry.Tracing.Enabled)},
		{"TELEMETRY_TRACING_SAMPLER", stringVar(&cfg.Telemetry.Tracing.Sampler)},
		{"TELEMETRY_TRACING_SAMPLE_RATIO", floatVar(&cfg.Telemetry.Tracing.SampleRatio)},
		{"TELEMETRY_TRACING_ENDPOINT", stringVar(&cfg.Telemetry.Tracing.Endpoint)},
		{"TELEMETRY_TRACING_INSECURE", boolVar(&cfg.Telemetry.Tracing.Insecure)},
	}

	var errs []error
	for _, o := range overrides {
		val, ok := os.LookupEnv(EnvPrefix + o.name)
		if !ok || val == "" {
			continue
		}
		if err := o.apply(val); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s%s=%q: %w", EnvPrefix, o.name, val, err))
		}
	}
	return errors.Join(errs...)
}
