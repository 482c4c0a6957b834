package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/shuttle/pkg/config"
	"mercator-hq/shuttle/pkg/httperr"
	"mercator-hq/shuttle/pkg/requestid"
	"mercator-hq/shuttle/pkg/telemetry/tracing"
)

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// decodeRecords parses one JSON log record per line.
func decodeRecords(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		records = append(records, rec)
	}
	return records
}

func findRecord(records []map[string]any, msg string) map[string]any {
	for _, rec := range records {
		if rec["msg"] == msg {
			return rec
		}
	}
	return nil
}

func TestResponseWriter(t *testing.T) {
	t.Run("defaults to 200", func(t *testing.T) {
		rw := wrap(httptest.NewRecorder())
		if rw.Committed() || rw.Status() != http.StatusOK {
			t.Errorf("fresh writer committed=%v status=%d", rw.Committed(), rw.Status())
		}
		_, _ = rw.Write([]byte("hello"))
		if !rw.Committed() || rw.bytes != 5 {
			t.Errorf("after write committed=%v bytes=%d", rw.Committed(), rw.bytes)
		}
	})

	t.Run("first status wins", func(t *testing.T) {
		rw := wrap(httptest.NewRecorder())
		rw.WriteHeader(http.StatusAccepted)
		rw.WriteHeader(http.StatusTeapot)
		if rw.Status() != http.StatusAccepted {
			t.Errorf("Status() = %d", rw.Status())
		}
	})

	t.Run("wrap reuses recorder", func(t *testing.T) {
		rw := wrap(httptest.NewRecorder())
		if wrap(rw) != rw {
			t.Error("wrap allocated a second recorder")
		}
	})

	t.Run("flush passes through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		rw := wrap(rec)
		if err := http.NewResponseController(rw).Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		if !rec.Flushed || !rw.Committed() {
			t.Errorf("flushed=%v committed=%v", rec.Flushed, rw.Committed())
		}
	})
}

func TestRecovery(t *testing.T) {
	t.Run("panic before writing answers 500", func(t *testing.T) {
		var buf bytes.Buffer
		handler := Recovery(newLogger(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/context", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		var body httperr.ErrorResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if body.Error.Type != httperr.TypeServerError {
			t.Errorf("error type = %q", body.Error.Type)
		}
		if strings.Contains(rec.Body.String(), "boom") {
			t.Error("panic value leaked to the client")
		}

		logged := findRecord(decodeRecords(t, &buf), "panic in handler")
		if logged == nil || logged["error"] != "boom" || logged["committed"] != false {
			t.Errorf("panic log = %v", logged)
		}
	})

	t.Run("panic after commit aborts", func(t *testing.T) {
		var buf bytes.Buffer
		handler := Recovery(newLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("data: 1\n\n"))
			panic("mid-stream")
		}))

		rec := httptest.NewRecorder()
		func() {
			defer func() {
				if v := recover(); v != http.ErrAbortHandler {
					t.Errorf("recovered %v, want http.ErrAbortHandler", v)
				}
			}()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/events/clock", nil))
		}()

		if got := rec.Body.String(); got != "data: 1\n\n" {
			t.Errorf("body = %q, want only the streamed bytes", got)
		}
		logged := findRecord(decodeRecords(t, &buf), "panic in handler")
		if logged == nil || logged["committed"] != true {
			t.Errorf("panic log = %v", logged)
		}
	})

	t.Run("panic after commit truncates the body", func(t *testing.T) {
		srv := httptest.NewServer(Recovery(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("data: a\n\n"))
			_ = http.NewResponseController(w).Flush()
			panic("mid-stream")
		})))
		defer srv.Close()

		resp, err := http.Get(srv.URL)
		if err != nil {
			t.Fatalf("GET error = %v", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Errorf("read error = %v, want %v", err, io.ErrUnexpectedEOF)
		}
		if string(body) != "data: a\n\n" {
			t.Errorf("body = %q", body)
		}
	})

	t.Run("abort handler is re-raised", func(t *testing.T) {
		handler := Recovery(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic(http.ErrAbortHandler)
		}))

		defer func() {
			if v := recover(); v != http.ErrAbortHandler {
				t.Errorf("recovered %v, want http.ErrAbortHandler", v)
			}
		}()
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		t.Error("ErrAbortHandler was swallowed")
	})

	t.Run("request id survives the panic", func(t *testing.T) {
		handler := Recovery(slog.New(slog.DiscardHandler))(
			requestid.Middleware()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				panic("boom")
			})),
		)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if _, err := requestid.Parse(rec.Header().Get(requestid.DefaultHeader)); err != nil {
			t.Errorf("X-Request-ID on 500: %v", err)
		}
	})
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
		wantRoute string
	}{
		{"ok", "/v1/items/42", http.StatusOK, "INFO", "/v1/items/{id}"},
		{"client error", "/v1/items/0", http.StatusNotFound, "WARN", "/v1/items/{id}"},
		{"server error", "/v1/items/500", http.StatusInternalServerError, "ERROR", "/v1/items/{id}"},
		{"unmatched", "/nowhere", http.StatusNotFound, "WARN", UnmatchedRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			router := chi.NewRouter()
			router.Use(Logging(newLogger(&buf)))
			router.Get("/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			})

			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, tt.path, nil))

			rec := findRecord(decodeRecords(t, &buf), "request completed")
			if rec == nil {
				t.Fatal("no completion record")
			}
			if rec["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", rec["level"], tt.wantLevel)
			}
			if rec["route"] != tt.wantRoute {
				t.Errorf("route = %v, want %s", rec["route"], tt.wantRoute)
			}
			if rec["status"] != float64(tt.status) {
				t.Errorf("status = %v, want %d", rec["status"], tt.status)
			}
			if rec["path"] != tt.path {
				t.Errorf("path = %v", rec["path"])
			}
		})
	}
}

func TestLoggingPanic(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
		wantLevel  string
	}{
		{
			name:       "before commit",
			handler:    func(http.ResponseWriter, *http.Request) { panic("boom") },
			wantStatus: http.StatusInternalServerError,
			wantLevel:  "ERROR",
		},
		{
			name: "after commit",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("data: 1\n\n"))
				panic("mid-stream")
			},
			wantStatus: http.StatusOK,
			wantLevel:  "INFO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := Recovery(slog.New(slog.DiscardHandler))(Logging(newLogger(&buf))(tt.handler))

			func() {
				defer func() { _ = recover() }()
				handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/events/clock", nil))
			}()

			rec := findRecord(decodeRecords(t, &buf), "request completed")
			if rec == nil {
				t.Fatal("no completion record for a panicking request")
			}
			if rec["status"] != float64(tt.wantStatus) {
				t.Errorf("status = %v, want %d", rec["status"], tt.wantStatus)
			}
			if rec["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", rec["level"], tt.wantLevel)
			}
			if rec["panicked"] != true {
				t.Errorf("panicked = %v, want true", rec["panicked"])
			}
		})
	}
}

type requestMetric struct {
	method, route string
	status        int
	size          int64
}

type fakeRecorder struct {
	mu       sync.Mutex
	started  int
	finished []requestMetric
}

func (f *fakeRecorder) RequestStarted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
}

func (f *fakeRecorder) RequestFinished(method, route string, status int, _ time.Duration, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, requestMetric{method, route, status, size})
}

func TestMetrics(t *testing.T) {
	rec := &fakeRecorder{}
	router := chi.NewRouter()
	router.Use(Metrics(rec))
	router.Post("/v1/events/{stream}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("12345"))
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/events/echo", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	if rec.started != 2 || len(rec.finished) != 2 {
		t.Fatalf("started=%d finished=%d", rec.started, len(rec.finished))
	}
	want := []requestMetric{
		{http.MethodPost, "/v1/events/{stream}", http.StatusCreated, 5},
		{http.MethodGet, UnmatchedRoute, http.StatusNotFound, int64(len("404 page not found\n"))},
	}
	for i, w := range want {
		if rec.finished[i] != w {
			t.Errorf("finished[%d] = %+v, want %+v", i, rec.finished[i], w)
		}
	}
}

func TestTracing(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer, err := tracing.New(&config.TracingConfig{
		Enabled: true,
		Sampler: "always",
	}, tracing.WithExporter(exporter))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	var handlerTraceID string
	router := chi.NewRouter()
	router.Use(requestid.Middleware())
	router.Use(Tracing(tracer))
	router.Get("/v1/events/{stream}", func(w http.ResponseWriter, r *http.Request) {
		handlerTraceID = tracing.TraceID(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/events/clock", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	router.ServeHTTP(httptest.NewRecorder(), req)

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	span := spans[0]

	if span.Name != "GET /v1/events/{stream}" {
		t.Errorf("span name = %q", span.Name)
	}
	if got := span.SpanContext.TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" || handlerTraceID != got {
		t.Errorf("trace id = %s, handler saw %s", got, handlerTraceID)
	}
	if span.Parent.SpanID().String() != "00f067aa0ba902b7" {
		t.Errorf("parent span = %s", span.Parent.SpanID())
	}
	if span.Status.Code != codes.Error {
		t.Errorf("status = %v, want error for 503", span.Status.Code)
	}

	attrs := map[string]string{}
	for _, kv := range span.Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	if attrs[tracing.AttrHTTPRoute] != "/v1/events/{stream}" {
		t.Errorf("route attribute = %q", attrs[tracing.AttrHTTPRoute])
	}
	if attrs[tracing.AttrHTTPStatusCode] != "503" {
		t.Errorf("status attribute = %q", attrs[tracing.AttrHTTPStatusCode])
	}
	if _, err := requestid.Parse(attrs[tracing.AttrRequestID]); err != nil {
		t.Errorf("request id attribute: %v", err)
	}
}
