package limits

import (
	"math"
	"sync"
	"time"

	"mercator-hq/shuttle/pkg/config"
)

// Rejection reasons reported in Decision.Reason and to the Observer.
const (
	ReasonConcurrency = "concurrency"
	ReasonRate        = "rate"
)

// concurrencyRetryAfter is advertised when a caller holds too many
// streams. There is no way to know when one of them ends.
const concurrencyRetryAfter = time.Second

// Decision is the outcome of Limiter.Acquire.
type Decision struct {
	// Allowed is true when the stream may be opened.
	Allowed bool

	// Reason names the limit that rejected the stream.
	Reason string

	// Limit and Remaining describe the limit that was checked last.
	Limit     int64
	Remaining int64

	// RetryAfter is a hint for rejected callers.
	RetryAfter time.Duration
}

// Observer is notified of rejected streams.
type Observer interface {
	StreamRejected(reason string)
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithObserver reports rejections to o.
func WithObserver(o Observer) Option {
	return func(l *Limiter) {
		l.observer = o
	}
}

// WithClock replaces time.Now. Tests use it to drive refills.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// Limiter applies stream limits per caller key. Each key gets its own
// concurrency slots and token bucket, created on first use and dropped
// after idleTTL without activity.
type Limiter struct {
	maxStreams int
	rate       float64
	burst      int64
	idleTTL    time.Duration

	observer Observer
	now      func() time.Time

	mu        sync.Mutex
	callers   map[string]*caller
	lastSweep time.Time
}

type caller struct {
	streams  *ConcurrentLimiter
	opens    *TokenBucket
	lastSeen time.Time
}

// New creates a limiter from cfg. A zero MaxStreams or StreamsPerSecond
// disables that limit.
func New(cfg *config.LimitsConfig, opts ...Option) *Limiter {
	l := &Limiter{
		maxStreams: cfg.MaxStreams,
		rate:       cfg.StreamsPerSecond,
		burst:      int64(cfg.Burst),
		idleTTL:    cfg.IdleTTL,
		now:        time.Now,
		callers:    make(map[string]*caller),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.burst <= 0 && l.rate > 0 {
		l.burst = int64(math.Ceil(l.rate))
	}
	if l.idleTTL <= 0 {
		l.idleTTL = config.DefaultLimitsIdleTTL
	}
	l.lastSweep = l.now()
	return l
}

// Acquire admits or rejects a new stream for key. When the stream is
// admitted the returned release func must be called once it ends; it is
// nil otherwise.
func (l *Limiter) Acquire(key string) (func(), Decision) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleTTL {
		l.sweepLocked(now)
	}

	c := l.callerLocked(key, now)
	c.lastSeen = now

	d := Decision{Allowed: true}
	if c.streams != nil {
		if !c.streams.Acquire() {
			return nil, l.reject(Decision{
				Reason:     ReasonConcurrency,
				Limit:      c.streams.Limit(),
				RetryAfter: concurrencyRetryAfter,
			})
		}
		d.Limit, d.Remaining = c.streams.Limit(), c.streams.Remaining()
	}

	if c.opens != nil && !c.opens.Take(1) {
		if c.streams != nil {
			c.streams.Release()
		}
		return nil, l.reject(Decision{
			Reason:     ReasonRate,
			Limit:      c.opens.Capacity(),
			RetryAfter: c.opens.TimeUntilAvailable(1),
		})
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			if c.streams != nil {
				c.streams.Release()
			}
		})
	}
	return release, d
}

func (l *Limiter) reject(d Decision) Decision {
	if l.observer != nil {
		l.observer.StreamRejected(d.Reason)
	}
	return d
}

func (l *Limiter) callerLocked(key string, now time.Time) *caller {
	if c, ok := l.callers[key]; ok {
		return c
	}
	c := &caller{}
	if l.maxStreams > 0 {
		c.streams = NewConcurrentLimiter(l.maxStreams)
	}
	if l.rate > 0 {
		c.opens = newTokenBucket(l.burst, l.rate, l.now)
	}
	l.callers[key] = c
	return c
}

// Sweep drops callers idle for longer than the idle TTL that hold no
// streams and have a full bucket, and returns how many were dropped.
// Acquire sweeps on its own once per TTL.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sweepLocked(l.now())
}

func (l *Limiter) sweepLocked(now time.Time) int {
	l.lastSweep = now
	dropped := 0
	for key, c := range l.callers {
		if now.Sub(c.lastSeen) < l.idleTTL {
			continue
		}
		if c.streams != nil && c.streams.Current() > 0 {
			continue
		}
		if c.opens != nil && !c.opens.Full() {
			continue
		}
		delete(l.callers, key)
		dropped++
	}
	return dropped
}

// Len returns the number of tracked callers.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.callers)
}
