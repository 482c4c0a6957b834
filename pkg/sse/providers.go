package sse

import (
	"context"
	"iter"
	"time"
)

// Events returns a Provider yielding evs in order.
func Events(evs ...Event) Provider {
	return func(ctx context.Context) iter.Seq2[Event, error] {
		return func(yield func(Event, error) bool) {
			for _, ev := range evs {
				if ctx.Err() != nil {
					return
				}
				if !yield(ev, nil) {
					return
				}
			}
		}
	}
}

// FromChannel returns a Provider yielding events received from ch until it
// is closed or ctx is done.
func FromChannel(ch <-chan Event) Provider {
	return func(ctx context.Context) iter.Seq2[Event, error] {
		return func(yield func(Event, error) bool) {
			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-ch:
					if !ok {
						return
					}
					if !yield(ev, nil) {
						return
					}
				}
			}
		}
	}
}

// HeartbeatComment is the text of keep-alive comment frames.
const HeartbeatComment = "ping"

type pulled struct {
	ev  Event
	err error
}

// heartbeat runs the provider on its own goroutine so that silence can be
// detected. It returns only after the provider goroutine has exited.
func heartbeat(ctx context.Context, p Provider, every time.Duration) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		items := make(chan pulled)
		finished := make(chan struct{})
		defer func() {
			cancel()
			<-finished
		}()

		go func() {
			defer close(finished)
			defer close(items)
			for ev, err := range p(ctx) {
				select {
				case items <- pulled{ev: ev, err: err}:
				case <-ctx.Done():
					return
				}
				if err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case it, ok := <-items:
				if !ok {
					return
				}
				if it.err != nil {
					yield(nil, it.err)
					return
				}
				if !yield(Encode(it.ev), nil) {
					return
				}
				ticker.Reset(every)
			case <-ticker.C:
				if !yield(Comment(HeartbeatComment), nil) {
					return
				}
			}
		}
	}
}
