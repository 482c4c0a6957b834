package journal

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/eapache/queue"
)

// DefaultCapacity is the per-stream entry limit of a MemoryStore.
const DefaultCapacity = 1024

// MemoryStore keeps the most recent entries of each stream in a ring
// buffer. The oldest entry is dropped when a stream reaches capacity.
type MemoryStore struct {
	mu       sync.Mutex
	streams  map[string]*queue.Queue
	capacity int
	closed   bool
}

// NewMemoryStore creates a MemoryStore holding up to capacity entries per
// stream. capacity <= 0 selects DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		streams:  make(map[string]*queue.Queue),
		capacity: capacity,
	}
}

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.Data = slices.Clone(e.Data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	q, ok := m.streams[e.Stream]
	if !ok {
		q = queue.New()
		m.streams[e.Stream] = q
	}
	for q.Length() >= m.capacity {
		q.Remove()
	}
	q.Add(e)
	return nil
}

// Since implements Store.
func (m *MemoryStore) Since(_ context.Context, stream, afterID string, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	q, ok := m.streams[stream]
	if !ok {
		if afterID != "" {
			return nil, ErrNotFound
		}
		return nil, nil
	}

	start := 0
	if afterID != "" {
		start = -1
		for i := q.Length() - 1; i >= 0; i-- {
			if q.Get(i).(Entry).ID == afterID {
				start = i + 1
				break
			}
		}
		if start < 0 {
			return nil, ErrNotFound
		}
	}

	n := q.Length() - start
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]Entry, 0, n)
	for i := start; i < start+n; i++ {
		out = append(out, q.Get(i).(Entry))
	}
	return out, nil
}

// Prune implements Store.
func (m *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	var removed int64
	for name, q := range m.streams {
		for q.Length() > 0 && q.Peek().(Entry).CreatedAt.Before(cutoff) {
			q.Remove()
			removed++
		}
		if q.Length() == 0 {
			delete(m.streams, name)
		}
	}
	return removed, nil
}

// Len returns the number of entries retained for stream.
func (m *MemoryStore) Len(stream string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.streams[stream]; ok {
		return q.Length()
	}
	return 0
}

// Ping implements Store.
func (m *MemoryStore) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.streams = nil
	return nil
}
