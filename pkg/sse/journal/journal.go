// Package journal retains recently sent events so that a reconnecting
// Server-Sent Events client can resume from its Last-Event-ID.
//
// Three Store implementations are provided: an in-memory store bounded per
// stream, a SQLite store that survives restarts, and a PostgreSQL store
// that several server instances can share. A Scheduler prunes
// old entries on a cron schedule.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Since when the requested id is not retained.
var ErrNotFound = errors.New("journal: event not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("journal: store closed")

// ErrDuplicate is wrapped by the PostgreSQL store when an id is appended
// twice to the same stream.
var ErrDuplicate = errors.New("journal: duplicate event id")

// Entry is one journaled event.
type Entry struct {
	// Stream names the event stream, e.g. a topic or a resource path.
	Stream string

	// ID is the event id sent to the client. Unique within a stream.
	ID string

	// Name is the event field, empty for unnamed events.
	Name string

	// Data is the serialised payload.
	Data []byte

	// CreatedAt is when the entry was appended.
	CreatedAt time.Time
}

// Store persists entries per stream in append order.
type Store interface {
	// Append adds e to its stream. CreatedAt is set when zero.
	Append(ctx context.Context, e Entry) error

	// Since returns up to limit entries of stream appended after the entry
	// with id afterID, oldest first. An empty afterID returns the oldest
	// retained entries. limit <= 0 means no limit.
	Since(ctx context.Context, stream, afterID string, limit int) ([]Entry, error)

	// Prune deletes entries created before cutoff and returns how many were
	// removed.
	Prune(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping reports whether the store can serve requests.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close() error
}

// StorageError wraps a backend failure with the operation that caused it.
type StorageError struct {
	Backend   string
	Operation string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("journal %s: %s: %v", e.Backend, e.Operation, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func newStorageError(backend, op string, err error) *StorageError {
	return &StorageError{Backend: backend, Operation: op, Err: err}
}
