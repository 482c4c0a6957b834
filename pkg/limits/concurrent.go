package limits

import (
	"sync/atomic"
)

// ConcurrentLimiter bounds the number of streams a caller holds open at
// once. It is a counting semaphore built on atomic operations.
//
// # Algorithm
//
//  1. Atomically increment the counter
//  2. If the counter exceeds the limit, decrement and reject
//  3. Otherwise admit; Release decrements when the stream ends
type ConcurrentLimiter struct {
	limit   int64
	current atomic.Int64
}

// NewConcurrentLimiter creates a limiter admitting at most limit holders.
//
// Example:
//
//	streams := NewConcurrentLimiter(4)
//	if streams.Acquire() {
//	    defer streams.Release()
//	    // write the stream
//	}
func NewConcurrentLimiter(limit int) *ConcurrentLimiter {
	return &ConcurrentLimiter{limit: int64(limit)}
}

// Acquire attempts to take a slot. If it returns true the caller must
// call Release exactly once.
func (cl *ConcurrentLimiter) Acquire() bool {
	if cl.current.Add(1) > cl.limit {
		cl.current.Add(-1)
		return false
	}
	return true
}

// Release returns a slot taken by Acquire.
func (cl *ConcurrentLimiter) Release() {
	cl.current.Add(-1)
}

// Current returns the number of slots in use.
func (cl *ConcurrentLimiter) Current() int64 {
	return cl.current.Load()
}

// Limit returns the configured limit.
func (cl *ConcurrentLimiter) Limit() int64 {
	return cl.limit
}

// Remaining returns the number of free slots.
func (cl *ConcurrentLimiter) Remaining() int64 {
	remaining := cl.limit - cl.current.Load()
	if remaining < 0 {
		return 0
	}
	return remaining
}
