package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"
)

// Response is a status, a header set and a streamed body.
type Response struct {
	// Status is the HTTP status code. Zero means 200.
	Status int

	// Header is copied onto the response before the head is written.
	Header http.Header

	// Content is the body. A nil Content writes an empty body.
	Content *Content
}

// NewResponse creates a 200 response for c.
func NewResponse(c *Content) *Response {
	return &Response{Status: http.StatusOK, Header: http.Header{}, Content: c}
}

// Write sends the response head and pumps the content with the request
// context. It returns the error that ended the stream, if any.
func (resp *Response) Write(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	h := w.Header()
	for k, vs := range resp.Header {
		h[k] = slices.Clone(vs)
	}

	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}

	if resp.Content == nil {
		w.WriteHeader(status)
		return nil
	}

	mediaType := resp.Content.MediaType()
	if mediaType != "" {
		h.Set("Content-Type", mediaType)
	}

	obs := currentObserver()
	start := time.Now()
	obs.StreamOpened(mediaType)

	w.WriteHeader(status)
	n, err := resp.Content.WriteTo(ctx, w)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		obs.StreamClosed(mediaType, OutcomeCompleted, elapsed)
		slog.DebugContext(ctx, "stream completed",
			"media_type", mediaType,
			"bytes", n,
			"duration_ms", elapsed.Milliseconds(),
		)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		obs.StreamClosed(mediaType, OutcomeCancelled, elapsed)
		slog.InfoContext(ctx, "stream cancelled",
			"media_type", mediaType,
			"bytes", n,
			"reason", err,
		)
	default:
		obs.StreamClosed(mediaType, OutcomeFailed, elapsed)
		slog.ErrorContext(ctx, "stream failed",
			"media_type", mediaType,
			"bytes", n,
			"error", err,
		)
	}
	return err
}

// ServeHTTP implements http.Handler. Errors are logged by Write. A producer
// failure after the head is sent aborts the connection with
// http.ErrAbortHandler so the client sees a truncated body instead of a clean
// end of stream. A cancelled request returns normally.
func (resp *Response) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := resp.Write(w, r)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	panic(http.ErrAbortHandler)
}
