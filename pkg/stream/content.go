// Package stream implements response bodies that are produced lazily and
// delivered to the client chunk by chunk.
//
// A Content wraps a Producer, a function returning an iterator of byte
// chunks bound to the request context. Nothing is produced until the
// content is written; each chunk is written and flushed before the next
// one is pulled, so the client observes chunks as soon as they exist.
//
// Content is single use. A second iteration yields ErrConsumed.
//
// When the client disconnects the request context is cancelled. The pump
// stops at the next chunk boundary and breaks out of the iterator, which
// runs the producer's deferred cleanups.
package stream

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"sync/atomic"
)

// ErrConsumed is yielded when a Content is iterated a second time.
var ErrConsumed = errors.New("stream: content already consumed")

// Producer returns the chunk sequence for one response. Implementations
// should stop when ctx is done.
type Producer func(ctx context.Context) iter.Seq2[[]byte, error]

// Content is a lazily produced response body.
type Content struct {
	mediaType string
	producer  Producer
	consumed  atomic.Bool
}

// NewContent creates a Content of the given media type.
func NewContent(mediaType string, p Producer) *Content {
	return &Content{mediaType: mediaType, producer: p}
}

// MediaType returns the media type sent as Content-Type.
func (c *Content) MediaType() string {
	return c.mediaType
}

// Chunks returns the chunk sequence. Only the first call yields the
// producer's chunks.
func (c *Content) Chunks(ctx context.Context) iter.Seq2[[]byte, error] {
	if c.consumed.Swap(true) || c.producer == nil {
		return func(yield func([]byte, error) bool) {
			if c.producer == nil {
				return
			}
			yield(nil, ErrConsumed)
		}
	}
	return c.producer(ctx)
}

// WriteTo writes every chunk to w, flushing after each one. It returns the
// number of body bytes written.
//
// If ctx is cancelled WriteTo stops before the next chunk and returns
// ctx.Err(). A producer error stops the stream and is returned as is;
// bytes already flushed stay with the client.
func (c *Content) WriteTo(ctx context.Context, w http.ResponseWriter) (int64, error) {
	rc := http.NewResponseController(w)
	obs := currentObserver()

	var written int64
	for chunk, err := range c.Chunks(ctx) {
		if err != nil {
			return written, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return written, ctxErr
		}

		n, err := w.Write(chunk)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("failed to write chunk: %w", err)
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			return written, fmt.Errorf("failed to flush: %w", err)
		}
		obs.ChunkSent(c.mediaType, n)
	}

	if err := ctx.Err(); err != nil {
		return written, err
	}
	return written, nil
}
