package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a provider that does not hold the secret.
var ErrNotFound = errors.New("secret not found")

// Provider retrieves secrets from one backend.
type Provider interface {
	// GetSecret returns the named secret, or an error wrapping ErrNotFound
	// when the backend does not hold it.
	GetSecret(ctx context.Context, name string) (string, error)

	// Provider returns the backend name for logs.
	Provider() string
}
