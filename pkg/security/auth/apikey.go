package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"sync"

	"mercator-hq/shuttle/pkg/config"
)

// Validation errors.
var (
	ErrInvalidKey  = errors.New("invalid API key")
	ErrDisabledKey = errors.New("API key disabled")
)

// APIKeyValidator checks presented keys against a configured set. Keys are
// indexed by digest and compared in constant time.
type APIKeyValidator struct {
	mu   sync.RWMutex
	keys map[[sha256.Size]byte]*APIKeyInfo
}

// NewAPIKeyValidator creates a validator for keys.
func NewAPIKeyValidator(keys []*APIKeyInfo) *APIKeyValidator {
	v := &APIKeyValidator{keys: make(map[[sha256.Size]byte]*APIKeyInfo, len(keys))}
	for _, k := range keys {
		v.keys[sha256.Sum256([]byte(k.Key))] = k
	}
	return v
}

// FromConfig creates a validator from the api_keys configuration section.
func FromConfig(cfg *config.APIKeysConfig) *APIKeyValidator {
	keys := make([]*APIKeyInfo, 0, len(cfg.Keys))
	for _, k := range cfg.Keys {
		keys = append(keys, &APIKeyInfo{
			Key:     k.Key,
			Subject: k.Subject,
			Tenant:  k.Tenant,
			Enabled: !k.Disabled,
		})
	}
	return NewAPIKeyValidator(keys)
}

// Validate returns the info for key.
func (v *APIKeyValidator) Validate(key string) (*APIKeyInfo, error) {
	v.mu.RLock()
	info, ok := v.keys[sha256.Sum256([]byte(key))]
	v.mu.RUnlock()

	if !ok || subtle.ConstantTimeCompare([]byte(info.Key), []byte(key)) != 1 {
		return nil, ErrInvalidKey
	}
	if !info.Enabled {
		return nil, ErrDisabledKey
	}
	return info, nil
}

// Add registers or replaces a key.
func (v *APIKeyValidator) Add(info *APIKeyInfo) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[sha256.Sum256([]byte(info.Key))] = info
}

// Remove forgets a key.
func (v *APIKeyValidator) Remove(key string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.keys, sha256.Sum256([]byte(key)))
}

// Len returns the number of registered keys.
func (v *APIKeyValidator) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}
