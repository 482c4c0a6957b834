package scope

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
)

// ErrScopeNotActive is returned when a store operation runs with no open
// scope on the context, or after the scope was closed.
var ErrScopeNotActive = errors.New("scope: no active request scope")

// storeKey is the context key for the active store.
type storeKey struct{}

// Store is the mutable key/value map owned by one request.
// It is safe for concurrent use by goroutines serving the same request.
type Store struct {
	mu     sync.RWMutex
	data   map[string]any
	closed bool
}

// Token releases a scope opened with Open.
type Token struct {
	store *Store
	once  sync.Once
}

// Open installs a new store on ctx, seeded with a copy of data.
// The returned context must be used for every operation that should see the
// store. A scope opened on a context that already carries one shadows the
// outer store until the returned token is closed.
func Open(ctx context.Context, data map[string]any) (context.Context, *Token) {
	s := &Store{data: make(map[string]any, len(data))}
	maps.Copy(s.data, data)
	return context.WithValue(ctx, storeKey{}, s), &Token{store: s}
}

// Close detaches the store. It is safe to call more than once.
func (t *Token) Close() {
	if t == nil {
		return
	}
	t.once.Do(func() {
		t.store.mu.Lock()
		t.store.closed = true
		clear(t.store.data)
		t.store.mu.Unlock()
	})
}

// Run opens a scope seeded with data, calls fn with the scoped context and
// closes the scope when fn returns, fails or panics.
func Run(ctx context.Context, data map[string]any, fn func(ctx context.Context) error) error {
	ctx, tok := Open(ctx, data)
	defer tok.Close()
	return fn(ctx)
}

func storeFrom(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(storeKey{}).(*Store)
	return s, ok
}

// Exists reports whether ctx carries an open scope. It never fails.
func Exists(ctx context.Context) bool {
	s, ok := storeFrom(ctx)
	if !ok {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.closed
}

// Set stores value under key in the active scope.
func Set(ctx context.Context, key string, value any) error {
	s, ok := storeFrom(ctx)
	if !ok {
		return ErrScopeNotActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrScopeNotActive
	}
	s.data[key] = value
	return nil
}

// Lookup returns the value stored under key and whether it was present.
func Lookup(ctx context.Context, key string) (any, bool, error) {
	s, ok := storeFrom(ctx)
	if !ok {
		return nil, false, ErrScopeNotActive
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrScopeNotActive
	}
	v, found := s.data[key]
	return v, found, nil
}

// Get returns the value stored under key, or nil if the key is missing.
func Get(ctx context.Context, key string) (any, error) {
	v, _, err := Lookup(ctx, key)
	return v, err
}

// GetOr returns the value stored under key, or def if the key is missing.
// A missing scope is still an error.
func GetOr(ctx context.Context, key string, def any) (any, error) {
	v, found, err := Lookup(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return def, nil
	}
	return v, nil
}

// Value returns the value stored under key converted to T. The boolean is
// false when the key is missing. A present value of another type is an error.
func Value[T any](ctx context.Context, key string) (T, bool, error) {
	var zero T
	v, found, err := Lookup(ctx, key)
	if err != nil || !found {
		return zero, false, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false, fmt.Errorf("scope: key %q holds %T, not %T", key, v, zero)
	}
	return typed, true, nil
}

// Copy returns a snapshot of the active scope. Later writes to the scope do
// not affect the snapshot and the snapshot stays valid after the scope closes.
func Copy(ctx context.Context) (map[string]any, error) {
	s, ok := storeFrom(ctx)
	if !ok {
		return nil, ErrScopeNotActive
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrScopeNotActive
	}
	return maps.Clone(s.data), nil
}
