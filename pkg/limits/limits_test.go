package limits

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/shuttle/pkg/config"
	"mercator-hq/shuttle/pkg/httperr"
	"mercator-hq/shuttle/pkg/scope"
	"mercator-hq/shuttle/pkg/scope/extract"
)

// fakeClock is advanced by hand.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingObserver struct {
	mu      sync.Mutex
	reasons []string
}

func (o *countingObserver) StreamRejected(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reasons = append(o.reasons, reason)
}

func TestTokenBucket(t *testing.T) {
	clock := newFakeClock()
	bucket := newTokenBucket(10, 10, clock.Now)

	if !bucket.Take(5) {
		t.Fatal("Take(5) on a full bucket failed")
	}
	if got := bucket.Remaining(); got != 5 {
		t.Errorf("Remaining() = %d, want 5", got)
	}
	if !bucket.Take(5) {
		t.Fatal("Take(5) of the remaining tokens failed")
	}
	if bucket.Take(1) {
		t.Fatal("Take(1) on an empty bucket succeeded")
	}

	if got := bucket.TimeUntilAvailable(5); got != 500*time.Millisecond {
		t.Errorf("TimeUntilAvailable(5) = %v, want 500ms", got)
	}

	clock.Advance(100 * time.Millisecond)
	if !bucket.Take(1) {
		t.Error("bucket did not refill one token after 100ms")
	}

	clock.Advance(time.Hour)
	if got := bucket.Remaining(); got != 10 {
		t.Errorf("Remaining() = %d, want capacity 10", got)
	}
	if !bucket.Full() {
		t.Error("Full() = false after refill")
	}
	if got := bucket.TimeUntilAvailable(1); got != 0 {
		t.Errorf("TimeUntilAvailable(1) = %v, want 0", got)
	}
}

func TestTokenBucketConcurrent(t *testing.T) {
	bucket := NewTokenBucket(1000, 100)

	var wg sync.WaitGroup
	var taken atomic.Int64
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if bucket.Take(1) {
				taken.Add(1)
			}
		}()
	}
	wg.Wait()

	if taken.Load() != 100 {
		t.Errorf("taken = %d, want 100", taken.Load())
	}
}

func TestConcurrentLimiter(t *testing.T) {
	cl := NewConcurrentLimiter(2)

	if !cl.Acquire() || !cl.Acquire() {
		t.Fatal("could not acquire two slots")
	}
	if cl.Acquire() {
		t.Fatal("acquired a third slot")
	}
	if cl.Current() != 2 || cl.Remaining() != 0 {
		t.Errorf("Current() = %d, Remaining() = %d", cl.Current(), cl.Remaining())
	}

	cl.Release()
	if cl.Remaining() != 1 {
		t.Errorf("Remaining() = %d after release, want 1", cl.Remaining())
	}
	if !cl.Acquire() {
		t.Error("released slot could not be reacquired")
	}
}

func TestConcurrentLimiterParallel(t *testing.T) {
	cl := NewConcurrentLimiter(50)

	var wg sync.WaitGroup
	var admitted atomic.Int64
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if cl.Acquire() {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	if admitted.Load() != 50 {
		t.Errorf("admitted = %d, want 50", admitted.Load())
	}
	if cl.Current() != 50 {
		t.Errorf("Current() = %d, want 50", cl.Current())
	}
}

func TestLimiterConcurrency(t *testing.T) {
	obs := &countingObserver{}
	l := New(&config.LimitsConfig{MaxStreams: 1}, WithObserver(obs))

	release, d := l.Acquire("a")
	if !d.Allowed || d.Limit != 1 || d.Remaining != 0 {
		t.Fatalf("first Acquire() = %+v", d)
	}

	if _, d := l.Acquire("a"); d.Allowed || d.Reason != ReasonConcurrency {
		t.Errorf("second Acquire() = %+v, want a concurrency rejection", d)
	}
	if _, d := l.Acquire("b"); !d.Allowed {
		t.Error("another caller was limited by a's streams")
	}

	release()
	release()
	if _, d := l.Acquire("a"); !d.Allowed {
		t.Error("slot not returned by release")
	}
	if len(obs.reasons) != 1 || obs.reasons[0] != ReasonConcurrency {
		t.Errorf("observed %v", obs.reasons)
	}
}

func TestLimiterRate(t *testing.T) {
	clock := newFakeClock()
	l := New(&config.LimitsConfig{MaxStreams: 10, StreamsPerSecond: 1, Burst: 2}, WithClock(clock.Now))

	for i := 0; i < 2; i++ {
		release, d := l.Acquire("a")
		if !d.Allowed {
			t.Fatalf("burst stream %d rejected: %+v", i, d)
		}
		release()
	}

	_, d := l.Acquire("a")
	if d.Allowed || d.Reason != ReasonRate {
		t.Fatalf("Acquire() over the rate = %+v", d)
	}
	if d.RetryAfter != time.Second {
		t.Errorf("RetryAfter = %v, want 1s", d.RetryAfter)
	}

	clock.Advance(time.Second)
	release, d := l.Acquire("a")
	if !d.Allowed {
		t.Fatalf("Acquire() after refill = %+v", d)
	}
	release()
}

func TestLimiterRateRejectionReleasesSlot(t *testing.T) {
	clock := newFakeClock()
	l := New(&config.LimitsConfig{MaxStreams: 1, StreamsPerSecond: 1, Burst: 1}, WithClock(clock.Now))

	release, _ := l.Acquire("a")
	release()
	if _, d := l.Acquire("a"); d.Reason != ReasonRate {
		t.Fatalf("Acquire() = %+v, want rate rejection", d)
	}

	clock.Advance(time.Second)
	if _, d := l.Acquire("a"); !d.Allowed {
		t.Errorf("rate rejection leaked a concurrency slot: %+v", d)
	}
}

func TestLimiterSweep(t *testing.T) {
	clock := newFakeClock()
	l := New(&config.LimitsConfig{
		MaxStreams:       1,
		StreamsPerSecond: 1,
		Burst:            1,
		IdleTTL:          time.Minute,
	}, WithClock(clock.Now))

	held, _ := l.Acquire("held")
	idle, _ := l.Acquire("idle")
	idle()

	clock.Advance(2 * time.Minute)
	if n := l.Sweep(); n != 1 {
		t.Errorf("Sweep() = %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Errorf("Len() = %d, want the caller holding a stream", l.Len())
	}

	held()
	clock.Advance(2 * time.Minute)
	l.Acquire("new")
	if l.Len() != 1 {
		t.Errorf("Len() = %d, Acquire did not sweep idle callers", l.Len())
	}
}

func TestLimiterDisabledLimits(t *testing.T) {
	l := New(&config.LimitsConfig{})
	for i := 0; i < 100; i++ {
		if _, d := l.Acquire("a"); !d.Allowed {
			t.Fatalf("Acquire() %d rejected with no limits configured", i)
		}
	}
}

func TestMiddleware(t *testing.T) {
	l := New(&config.LimitsConfig{MaxStreams: 1})

	entered := make(chan struct{}, 1)
	finish := make(chan struct{})
	h := Middleware(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-finish
	}))

	first := httptest.NewRequest(http.MethodGet, "/v1/events/clock", nil)
	done := make(chan *httptest.ResponseRecorder)
	go func() {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, first)
		done <- rec
	}()
	<-entered

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/clock", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("code = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Errorf("Retry-After = %q", got)
	}
	if got := rec.Header().Get(HeaderRemaining); got != "0" {
		t.Errorf("%s = %q", HeaderRemaining, got)
	}
	var body httperr.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Error.Type != httperr.TypeRateLimit || body.Error.Code != httperr.CodeTooManyStreams {
		t.Errorf("error = %+v", body.Error)
	}

	close(finish)
	if rec := <-done; rec.Code != http.StatusOK || rec.Header().Get(HeaderLimit) != "1" {
		t.Errorf("admitted request: code %d, limit header %q", rec.Code, rec.Header().Get(HeaderLimit))
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/clock", nil))
	if rec.Code == http.StatusTooManyRequests {
		t.Error("slot not released when the handler returned")
	}
}

func TestCallerKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:51234"
	if got := CallerKey(req); got != "addr:192.0.2.7" {
		t.Errorf("anonymous key = %q", got)
	}

	ctx, tok := scope.Open(context.Background(), map[string]any{extract.KeySubject: "svc-a"})
	defer tok.Close()
	if got := CallerKey(req.WithContext(ctx)); got != "subject:svc-a" {
		t.Errorf("subject key = %q", got)
	}
}
