// Package sse models Server-Sent Events and streams them as response bodies.
//
// # Events
//
// Event is a closed set of three variants:
//
//	sse.Text{Data: "hello"}          // data: hello
//	sse.Done{}                       // data: [DONE]
//	sse.NewJSON(v, sse.WithName(n))  // event: n / data: <json>
//
// Encode maps an event to its wire bytes. Fields are written in the order
// event, id, retry, data and every event ends with exactly one blank line.
// Multi-line data is split into one data field per line.
//
// # Streaming
//
// A Provider yields the events of one response. NewContent turns a provider
// into a stream.Content of type text/event-stream with one chunk per event,
// and NewResponse adds the headers that stop proxies from buffering:
//
//	Cache-Control: no-cache
//	Connection: Keep-Alive
//	X-Accel-Buffering: no
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidField is returned for event names and ids that would break
// framing.
var ErrInvalidField = errors.New("sse: invalid event field")

// Event is a Server-Sent Event. The set of implementations is closed.
type Event interface {
	appendTo(dst []byte) []byte
}

// Text is a plain data event without name or id.
type Text struct {
	Data string
}

// Done is the [DONE] sentinel that ends completion streams.
type Done struct{}

// DonePayload is the data carried by Done.
const DonePayload = "[DONE]"

// JSON is the general event form. Its payload is serialised once, when the
// event is built.
type JSON struct {
	name    string
	id      string
	retry   int
	payload []byte
}

// EventOption configures a JSON event.
type EventOption func(*JSON) error

// WithName sets the event field.
func WithName(name string) EventOption {
	return func(e *JSON) error {
		if err := checkField("event", name); err != nil {
			return err
		}
		e.name = name
		return nil
	}
}

// WithID sets the id field.
func WithID(id string) EventOption {
	return func(e *JSON) error {
		if err := checkField("id", id); err != nil {
			return err
		}
		e.id = id
		return nil
	}
}

// WithRetry sets the reconnection delay in milliseconds.
func WithRetry(ms int) EventOption {
	return func(e *JSON) error {
		if ms < 0 {
			return fmt.Errorf("%w: retry %d is negative", ErrInvalidField, ms)
		}
		e.retry = ms
		return nil
	}
}

// NewJSON builds an event whose data field is the JSON encoding of data.
func NewJSON(data any, opts ...EventOption) (*JSON, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event data: %w", err)
	}
	e := &JSON{payload: payload, retry: -1}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// MustJSON is like NewJSON but panics on error. It is meant for payloads
// known to be serialisable.
func MustJSON(data any, opts ...EventOption) *JSON {
	e, err := NewJSON(data, opts...)
	if err != nil {
		panic(err)
	}
	return e
}

// Name returns the event field, or "" if unset.
func (e *JSON) Name() string { return e.name }

// ID returns the id field, or "" if unset.
func (e *JSON) ID() string { return e.id }

// Retry returns the retry field and whether it is set.
func (e *JSON) Retry() (int, bool) { return e.retry, e.retry >= 0 }

// Payload returns the serialised data.
func (e *JSON) Payload() json.RawMessage { return e.payload }

// withID returns a copy of e carrying id.
func (e *JSON) withID(id string) *JSON {
	c := *e
	c.id = id
	return &c
}

func checkField(field, v string) error {
	if strings.ContainsAny(v, "\r\n\x00") {
		return fmt.Errorf("%w: %s %q contains a line break or NUL", ErrInvalidField, field, v)
	}
	return nil
}
