package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/shuttle/pkg/config"
)

var secretRef = regexp.MustCompile(`\$\{secret:([^}]+)\}`)

// Manager resolves secrets from an ordered list of providers. The first
// provider holding a secret wins.
type Manager struct {
	providers []Provider
	logger    *slog.Logger
}

// NewManager creates a manager over providers.
func NewManager(logger *slog.Logger, providers ...Provider) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{providers: providers, logger: logger}
}

// FromConfig builds a manager with the environment provider first and, when
// a directory is configured, the file provider second. Close the returned
// file provider, if any, on shutdown.
func FromConfig(cfg *config.SecretsConfig, logger *slog.Logger) (*Manager, *FileProvider, error) {
	providers := []Provider{NewEnvProvider(cfg.EnvPrefix)}

	var files *FileProvider
	if cfg.Dir != "" {
		var err error
		files, err = NewFileProvider(cfg.Dir, cfg.Watch, logger)
		if err != nil {
			return nil, nil, err
		}
		providers = append(providers, files)
	}
	return NewManager(logger, providers...), files, nil
}

// GetSecret returns the named secret from the first provider holding it.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	for _, p := range m.providers {
		value, err := p.GetSecret(ctx, name)
		if err == nil {
			m.logger.Debug("secret resolved", "provider", p.Provider(), "name", name)
			return value, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%s provider: %w", p.Provider(), err)
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, name)
}

// HasReference reports whether s contains a ${secret:name} reference.
func HasReference(s string) bool {
	return secretRef.MatchString(s)
}

// Expand replaces every ${secret:name} reference in s. Strings without
// references are returned unchanged.
func (m *Manager) Expand(ctx context.Context, s string) (string, error) {
	var errs []error
	out := secretRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := strings.TrimSpace(secretRef.FindStringSubmatch(ref)[1])
		value, err := m.GetSecret(ctx, name)
		if err != nil {
			errs = append(errs, err)
			return ref
		}
		return value
	})

	if len(errs) > 0 {
		return "", fmt.Errorf("secrets: %w", errors.Join(errs...))
	}
	return out, nil
}

// ResolveConfig returns a copy of cfg with secret references in
// credential fields expanded. cfg itself is not modified.
func (m *Manager) ResolveConfig(ctx context.Context, cfg *config.Config) (*config.Config, error) {
	resolved := *cfg

	secret, err := m.Expand(ctx, cfg.Context.JWT.Secret)
	if err != nil {
		return nil, fmt.Errorf("context.jwt.secret: %w", err)
	}
	resolved.Context.JWT.Secret = secret

	if len(cfg.Context.APIKeys.Keys) > 0 {
		keys := make([]config.APIKeyConfig, len(cfg.Context.APIKeys.Keys))
		for i, k := range cfg.Context.APIKeys.Keys {
			if k.Key, err = m.Expand(ctx, k.Key); err != nil {
				return nil, fmt.Errorf("context.api_keys.keys[%d].key: %w", i, err)
			}
			keys[i] = k
		}
		resolved.Context.APIKeys.Keys = keys
	}

	if resolved.Journal.Postgres.DSN, err = m.Expand(ctx, cfg.Journal.Postgres.DSN); err != nil {
		return nil, fmt.Errorf("journal.postgres.dsn: %w", err)
	}

	return &resolved, nil
}
