// Package extract provides scope.Extractor implementations that seed a
// request scope from headers, JSON body fields and bearer token claims.
package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"mercator-hq/shuttle/pkg/scope"
)

// DefaultMaxBodyBytes bounds how much of the body JSONBody reads.
const DefaultMaxBodyBytes int64 = 1 << 20

// ErrBodyTooLarge is returned when the body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("request body too large")

// Headers copies request headers into scope keys. The mapping goes from
// header name to scope key. Absent headers are skipped.
func Headers(mapping map[string]string) scope.Extractor {
	return func(r *http.Request) (map[string]any, error) {
		data := make(map[string]any, len(mapping))
		for header, key := range mapping {
			if v := r.Header.Get(header); v != "" {
				data[key] = v
			}
		}
		return data, nil
	}
}

// JSONBody copies top-level fields of a JSON object body into scope keys.
// The mapping goes from JSON field name to scope key. Requests without a
// JSON content type or without a body yield no data. The body is restored
// so the handler can read it again.
func JSONBody(mapping map[string]string, maxBytes int64) scope.Extractor {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return func(r *http.Request) (map[string]any, error) {
		if r.Body == nil || r.Body == http.NoBody || !isJSON(r) {
			return map[string]any{}, nil
		}

		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		_ = r.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if int64(len(raw)) > maxBytes {
			return nil, ErrBodyTooLarge
		}
		r.Body = io.NopCloser(bytes.NewReader(raw))

		if len(bytes.TrimSpace(raw)) == 0 {
			return map[string]any{}, nil
		}

		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("invalid JSON body: %w", err)
		}

		data := make(map[string]any, len(mapping))
		for field, key := range mapping {
			if v, ok := fields[field]; ok {
				data[key] = v
			}
		}
		return data, nil
	}
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
