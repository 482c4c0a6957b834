package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
)

// FromChunks returns a Producer yielding the given chunks in order.
func FromChunks(chunks ...[]byte) Producer {
	return func(ctx context.Context) iter.Seq2[[]byte, error] {
		return func(yield func([]byte, error) bool) {
			for _, c := range chunks {
				if ctx.Err() != nil {
					return
				}
				if !yield(c, nil) {
					return
				}
			}
		}
	}
}

// FromChannel returns a Producer yielding chunks received from ch until it
// is closed or ctx is done.
func FromChannel(ch <-chan []byte) Producer {
	return func(ctx context.Context) iter.Seq2[[]byte, error] {
		return func(yield func([]byte, error) bool) {
			for {
				select {
				case <-ctx.Done():
					return
				case c, ok := <-ch:
					if !ok {
						return
					}
					if !yield(c, nil) {
						return
					}
				}
			}
		}
	}
}

// FromReader returns a Producer yielding successive reads of at most size
// bytes from r. r is closed when the stream ends if it is an io.Closer.
func FromReader(r io.Reader, size int) Producer {
	if size <= 0 {
		size = 32 * 1024
	}
	return func(ctx context.Context) iter.Seq2[[]byte, error] {
		return func(yield func([]byte, error) bool) {
			if c, ok := r.(io.Closer); ok {
				defer c.Close()
			}
			for ctx.Err() == nil {
				buf := make([]byte, size)
				n, err := r.Read(buf)
				if n > 0 && !yield(buf[:n], nil) {
					return
				}
				if errors.Is(err, io.EOF) {
					return
				}
				if err != nil {
					yield(nil, fmt.Errorf("failed to read stream source: %w", err))
					return
				}
			}
		}
	}
}
