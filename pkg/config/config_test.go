package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(Default()) error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"listen address", cfg.Server.ListenAddress, DefaultListenAddress},
		{"write timeout", cfg.Server.WriteTimeout, time.Duration(0)},
		{"cors enabled", cfg.Server.CORS.Enabled, true},
		{"tls disabled", cfg.Server.TLS.Enabled, false},
		{"tls min version", cfg.Server.TLS.MinVersion, "1.3"},
		{"tls identity source", cfg.Server.TLS.IdentitySource, "subject.CN"},
		{"request id enabled", cfg.RequestID.Enabled, true},
		{"request id header", cfg.RequestID.Header, "X-Request-ID"},
		{"heartbeat", cfg.SSE.HeartbeatInterval, 15 * time.Second},
		{"journal enabled", cfg.Journal.Enabled, true},
		{"journal backend", cfg.Journal.Backend, "memory"},
		{"sqlite driver", cfg.Journal.SQLite.Driver, "sqlite"},
		{"sqlite wal", cfg.Journal.SQLite.WALMode, true},
		{"postgres max conns", cfg.Journal.Postgres.MaxConns, int32(25)},
		{"postgres lifetime", cfg.Journal.Postgres.MaxConnLifetime, 5 * time.Minute},
		{"limits disabled", cfg.Limits.Enabled, false},
		{"limits max streams", cfg.Limits.MaxStreams, 8},
		{"limits idle ttl", cfg.Limits.IdleTTL, 10 * time.Minute},
		{"frame options", cfg.Security.FrameOptions, "DENY"},
		{"nosniff", cfg.Security.NoSniff, true},
		{"log level", cfg.Telemetry.Logging.Level, "info"},
		{"metrics enabled", cfg.Telemetry.Metrics.Enabled, true},
		{"metrics path", cfg.Telemetry.Metrics.Path, "/metrics"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_address: "0.0.0.0:9090"
  read_timeout: 10s
request_id:
  trust_incoming: true
context:
  headers:
    X-Tenant-ID: tenant
journal:
  enabled: false
  backend: sqlite
limits:
  enabled: true
  max_streams: 0
security:
  no_sniff: false
telemetry:
  logging:
    level: debug
    format: text
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:9090" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
	if cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("ReadTimeout = %v", cfg.Server.ReadTimeout)
	}
	if cfg.Server.IdleTimeout != DefaultIdleTimeout {
		t.Errorf("IdleTimeout = %v, want default", cfg.Server.IdleTimeout)
	}
	if !cfg.RequestID.TrustIncoming || !cfg.RequestID.Enabled {
		t.Errorf("RequestID = %+v", cfg.RequestID)
	}
	if cfg.Context.Headers["X-Tenant-ID"] != "tenant" {
		t.Errorf("Context.Headers = %v", cfg.Context.Headers)
	}
	if cfg.Journal.Enabled {
		t.Error("explicit journal.enabled: false was overridden by the default")
	}
	if cfg.Security.NoSniff {
		t.Error("explicit security.no_sniff: false was overridden by the default")
	}
	if !cfg.Limits.Enabled || cfg.Limits.MaxStreams != 0 {
		t.Errorf("explicit limits.max_streams: 0 was overridden: %+v", cfg.Limits)
	}
	if cfg.Limits.StreamsPerSecond != DefaultLimitsStreamsPerSecond {
		t.Errorf("StreamsPerSecond = %v, want default", cfg.Limits.StreamsPerSecond)
	}
	if cfg.Telemetry.Logging.Level != "debug" || cfg.Telemetry.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Telemetry.Logging)
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.ListenAddress != DefaultListenAddress {
		t.Errorf("ListenAddress = %q, want default", cfg.Server.ListenAddress)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		field   string
	}{
		{"unknown field", "server:\n  listen_adress: x\n", ""},
		{"bad yaml", "server: [", ""},
		{"bad address", "server:\n  listen_address: nope\n", "server.listen_address"},
		{"tls without cert", "server:\n  tls:\n    enabled: true\n    key_file: k.pem\n", "server.tls.cert_file"},
		{"bad tls version", "server:\n  tls:\n    min_version: \"1.0\"\n", "server.tls.min_version"},
		{"bad backend", "journal:\n  backend: redis\n", "journal.backend"},
		{"postgres without dsn", "journal:\n  backend: postgres\n", "journal.postgres.dsn"},
		{"postgres min over max", "journal:\n  backend: postgres\n  postgres:\n    dsn: postgres://localhost/shuttle\n    max_conns: 2\n    min_conns: 4\n", "journal.postgres.min_conns"},
		{"bad level", "telemetry:\n  logging:\n    level: loud\n", "telemetry.logging.level"},
		{"jwt without secret", "context:\n  jwt:\n    enabled: true\n", "context.jwt.secret"},
		{"bad frame options", "security:\n  frame_options: ALLOW\n", "security.frame_options"},
		{"bad schedule", "journal:\n  prune_schedule: \"every now and then\"\n", "journal.prune_schedule"},
		{"bad metrics path", "telemetry:\n  metrics:\n    path: metrics\n", "telemetry.metrics.path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() expected error")
			}
			if tt.field == "" {
				return
			}
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			found := false
			for _, fe := range verr.Errors {
				if fe.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("errors = %v, want one for %s", verr.Errors, tt.field)
			}
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "server:\n  listen_address: \"127.0.0.1:8000\"\n")

	t.Setenv("SHUTTLE_SERVER_LISTEN_ADDRESS", "0.0.0.0:7000")
	t.Setenv("SHUTTLE_SERVER_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("SHUTTLE_SSE_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("SHUTTLE_JOURNAL_ENABLED", "false")
	t.Setenv("SHUTTLE_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("SHUTTLE_LIMITS_STREAMS_PER_SECOND", "0.5")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}

	if cfg.Server.ListenAddress != "0.0.0.0:7000" {
		t.Errorf("ListenAddress = %q, env must win over file", cfg.Server.ListenAddress)
	}
	if got := strings.Join(cfg.Server.CORS.AllowedOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("AllowedOrigins = %q", got)
	}
	if cfg.SSE.HeartbeatInterval != 5*time.Second {
		t.Errorf("HeartbeatInterval = %v", cfg.SSE.HeartbeatInterval)
	}
	if cfg.Journal.Enabled {
		t.Error("Journal.Enabled = true, want false from env")
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("Level = %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Limits.StreamsPerSecond != 0.5 {
		t.Errorf("StreamsPerSecond = %v", cfg.Limits.StreamsPerSecond)
	}
}

func TestEnvOverridesWithoutFile(t *testing.T) {
	t.Setenv("SHUTTLE_SERVER_LISTEN_ADDRESS", "127.0.0.1:9999")

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("LoadConfigWithEnvOverrides() error = %v", err)
	}
	if cfg.Server.ListenAddress != "127.0.0.1:9999" {
		t.Errorf("ListenAddress = %q", cfg.Server.ListenAddress)
	}
}

func TestEnvOverrideMalformed(t *testing.T) {
	t.Setenv("SHUTTLE_SSE_RETRY", "soon")

	_, err := LoadConfigWithEnvOverrides("")
	if err == nil || !strings.Contains(err.Error(), "SHUTTLE_SSE_RETRY") {
		t.Errorf("error = %v, want mention of SHUTTLE_SSE_RETRY", err)
	}
}

func TestValidationErrorMessage(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}}}
	if single.Error() != "configuration validation failed: a: bad" {
		t.Errorf("Error() = %q", single.Error())
	}

	multi := ValidationError{Errors: []FieldError{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}}
	if !strings.Contains(multi.Error(), "2 errors") {
		t.Errorf("Error() = %q", multi.Error())
	}
}
