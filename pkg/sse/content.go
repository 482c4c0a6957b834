package sse

import (
	"context"
	"iter"
	"net/http"
	"time"

	"mercator-hq/shuttle/pkg/stream"
)

// MediaType is the Content-Type of event streams.
const MediaType = "text/event-stream"

// Provider yields the events of one response. Implementations should stop
// when ctx is done.
type Provider func(ctx context.Context) iter.Seq2[Event, error]

// DefaultHeaders returns the headers NewResponse sends unless replaced
// with WithHeaders.
func DefaultHeaders() http.Header {
	return http.Header{
		"Cache-Control":     {"no-cache"},
		"Connection":        {"Keep-Alive"},
		"X-Accel-Buffering": {"no"},
	}
}

// NewContent returns a text/event-stream body with one chunk per event.
func NewContent(p Provider) *stream.Content {
	return stream.NewContent(MediaType, func(ctx context.Context) iter.Seq2[[]byte, error] {
		return encodeEvents(p(ctx))
	})
}

// NewContentWithHeartbeat is like NewContent but writes a comment frame
// whenever the provider has been silent for the given interval.
func NewContentWithHeartbeat(p Provider, every time.Duration) *stream.Content {
	if every <= 0 {
		return NewContent(p)
	}
	return stream.NewContent(MediaType, func(ctx context.Context) iter.Seq2[[]byte, error] {
		return heartbeat(ctx, p, every)
	})
}

func encodeEvents(events iter.Seq2[Event, error]) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for ev, err := range events {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(Encode(ev), nil) {
				return
			}
		}
	}
}

type responseOptions struct {
	status    int
	header    http.Header
	heartbeat time.Duration
}

// ResponseOption configures NewResponse.
type ResponseOption func(*responseOptions)

// WithStatus sets the status code. The default is 200.
func WithStatus(code int) ResponseOption {
	return func(o *responseOptions) {
		o.status = code
	}
}

// WithHeaders replaces the default headers entirely. Nothing is merged.
func WithHeaders(h http.Header) ResponseOption {
	return func(o *responseOptions) {
		o.header = h.Clone()
		if o.header == nil {
			o.header = http.Header{}
		}
	}
}

// WithHeartbeat enables keep-alive comments, see NewContentWithHeartbeat.
func WithHeartbeat(every time.Duration) ResponseOption {
	return func(o *responseOptions) {
		o.heartbeat = every
	}
}

// NewResponse returns a streaming response for p.
func NewResponse(p Provider, opts ...ResponseOption) *stream.Response {
	o := responseOptions{
		status: http.StatusOK,
		header: DefaultHeaders(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &stream.Response{
		Status:  o.status,
		Header:  o.header,
		Content: NewContentWithHeartbeat(p, o.heartbeat),
	}
}
