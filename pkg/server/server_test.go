package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"mercator-hq/shuttle/pkg/config"
	"mercator-hq/shuttle/pkg/requestid"
	"mercator-hq/shuttle/pkg/scope"
	"mercator-hq/shuttle/pkg/scope/extract"
	"mercator-hq/shuttle/pkg/sse"
	"mercator-hq/shuttle/pkg/telemetry/health"
	"mercator-hq/shuttle/pkg/telemetry/metrics"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Server.ListenAddress = "127.0.0.1:0"
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Context.Headers = map[string]string{"X-Tenant-ID": extract.KeyTenant}
	return cfg
}

func scopeRoute(r chi.Router) {
	r.Get("/v1/whoami", func(w http.ResponseWriter, r *http.Request) {
		tenant, _, err := scope.Value[string](r.Context(), extract.KeyTenant)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		id, _, _ := scope.Value[string](r.Context(), requestid.ScopeKey)
		_ = json.NewEncoder(w).Encode(map[string]string{"tenant": tenant, "request_id": id})
	})
}

func TestServerRoutes(t *testing.T) {
	collector := metrics.NewCollector(&config.MetricsConfig{
		Namespace: "shuttle",
		Subsystem: "http",
	}, prometheus.NewRegistry())

	srv := New(testConfig(),
		WithCollector(collector),
		WithVersion(VersionInfo{Version: "1.2.3", Commit: "abc"}),
		WithRoutes(scopeRoute),
	)
	h := srv.Handler()

	tests := []struct {
		name     string
		method   string
		path     string
		wantCode int
		wantBody string
	}{
		{"liveness", http.MethodGet, "/healthz", http.StatusOK, `"status":"ok"`},
		{"liveness head", http.MethodHead, "/healthz", http.StatusOK, ""},
		{"readiness", http.MethodGet, "/readyz", http.StatusOK, `"status":"ready"`},
		{"version", http.MethodGet, "/version", http.StatusOK, `"version":"1.2.3"`},
		{"metrics", http.MethodGet, "/metrics", http.StatusOK, "shuttle_http_"},
		{"not found", http.MethodGet, "/nope", http.StatusNotFound, `"type":"not_found"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != tt.wantCode {
				t.Fatalf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body %q does not contain %q", rec.Body.String(), tt.wantBody)
			}
			if _, err := requestid.Parse(rec.Header().Get(requestid.DefaultHeader)); err != nil {
				t.Errorf("request id header: %v", err)
			}
		})
	}
}

func TestServerScope(t *testing.T) {
	h := New(testConfig(), WithRoutes(scopeRoute)).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("X-Tenant-ID", "acme")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d, body %s", rec.Code, rec.Body)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["tenant"] != "acme" {
		t.Errorf("tenant = %q", body["tenant"])
	}
	if body["request_id"] != rec.Header().Get(requestid.DefaultHeader) {
		t.Errorf("scope request id %q != header %q", body["request_id"], rec.Header().Get(requestid.DefaultHeader))
	}
}

func TestServerAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Context.APIKeys = config.APIKeysConfig{
		Enabled:  true,
		Header:   config.DefaultAPIKeyHeader,
		Required: true,
		Keys:     []config.APIKeyConfig{{Key: "sk-test", Subject: "svc-a", Tenant: "acme"}},
	}
	h := New(cfg, WithRoutes(scopeRoute)).Handler()

	tests := []struct {
		name     string
		key      string
		wantCode int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "sk-other", http.StatusUnauthorized},
		{"valid key", "sk-test", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
			if tt.key != "" {
				req.Header.Set(config.DefaultAPIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}

	// Health probes stay outside the scope and need no key.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/healthz code = %d", rec.Code)
	}
}

func TestServerSecurityHeaders(t *testing.T) {
	cfg := testConfig()
	cfg.Security.ContentSecurityPolicy = "default-src 'none'"
	h := New(cfg).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	want := map[string]string{
		"X-Frame-Options":         "DENY",
		"X-Content-Type-Options":  "nosniff",
		"Referrer-Policy":         "no-referrer",
		"Content-Security-Policy": "default-src 'none'",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestServerCORS(t *testing.T) {
	cfg := testConfig()
	cfg.Server.CORS.AllowedOrigins = []string{"https://app.example.com"}
	h := New(cfg, WithRoutes(scopeRoute)).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/v1/whoami", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/whoami", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("disallowed origin got Access-Control-Allow-Origin = %q", got)
	}
}

func TestServerRecoversPanics(t *testing.T) {
	h := New(testConfig(), WithRoutes(func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })
	})).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("code = %d, want 500", rec.Code)
	}
	if rec.Header().Get(requestid.DefaultHeader) == "" {
		t.Error("request id missing on recovered response")
	}
}

func TestServerShutdownEndsStreams(t *testing.T) {
	checker := health.New(time.Second)
	srv := New(testConfig(),
		WithHealth(checker),
		WithRoutes(func(r chi.Router) {
			r.Get("/v1/forever", func(w http.ResponseWriter, r *http.Request) {
				ch := make(chan sse.Event, 1)
				ch <- sse.Text{Data: "hello"}
				sse.NewResponse(sse.FromChannel(ch)).ServeHTTP(w, r)
			})
		}),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/v1/forever")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	line, err := bufio.NewReader(resp.Body).ReadString('\n')
	if err != nil || line != "data: hello\n" {
		t.Fatalf("first line = %q, %v", line, err)
	}
	if !srv.IsRunning() {
		t.Fatal("server not running")
	}

	start := time.Now()
	cancel()

	select {
	case err := <-served:
		if err != nil {
			t.Fatalf("Serve() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown blocked on an open stream")
	}
	if time.Since(start) >= 2*time.Second {
		t.Error("shutdown waited for the timeout instead of ending the stream")
	}
	if _, err := io.ReadAll(resp.Body); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("reading the rest of the stream: %v", err)
	}

	if srv.IsRunning() {
		t.Error("server still running after shutdown")
	}
	if st := checker.CheckReadiness(context.Background()); st.Ready() {
		t.Errorf("readiness = %q after shutdown", st.Status)
	}
}

func TestServeTwice(t *testing.T) {
	srv := New(testConfig())

	ln1, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln1) }()

	deadline := time.Now().Add(2 * time.Second)
	for !srv.IsRunning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if err := srv.Serve(context.Background(), ln2); err == nil {
		t.Error("second Serve() succeeded")
	}

	cancel()
	if err := <-served; err != nil {
		t.Errorf("Serve() = %v", err)
	}
}

func TestServeTLSMissingCertificate(t *testing.T) {
	cfg := testConfig()
	cfg.Server.TLS.Enabled = true
	cfg.Server.TLS.CertFile = t.TempDir() + "/missing.crt"
	cfg.Server.TLS.KeyFile = t.TempDir() + "/missing.key"

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(cfg)
	if err := srv.Serve(context.Background(), ln); err == nil {
		t.Fatal("Serve() succeeded without a certificate")
	}
	if srv.IsRunning() {
		t.Error("server marked running after TLS failure")
	}
}
