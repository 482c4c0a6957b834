package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{"default timeout", 0, DefaultCheckTimeout},
		{"negative timeout", -time.Second, DefaultCheckTimeout},
		{"custom timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if len(checker.ListChecks()) != 0 {
				t.Error("new checker should have no checks")
			}
		})
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	checker := New(time.Second)
	ok := func(context.Context) error { return nil }

	checker.RegisterCheck("journal", ok)
	checker.RegisterCheck("config", ok)
	checker.RegisterCheck("config", ok)

	if got := checker.ListChecks(); !slices.Equal(got, []string{"config", "journal"}) {
		t.Errorf("ListChecks() = %v", got)
	}

	checker.UnregisterCheck("journal")
	if got := checker.ListChecks(); !slices.Equal(got, []string{"config"}) {
		t.Errorf("ListChecks() after unregister = %v", got)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name   string
		checks map[string]CheckFunc
		want   string
	}{
		{"no checks", nil, StatusReady},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return nil },
			},
			want: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"a": func(context.Context) error { return nil },
				"b": func(context.Context) error { return errors.New("store closed") },
			},
			want: StatusDegraded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.want {
				t.Errorf("Status = %q, want %q", status.Status, tt.want)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(status.Checks), len(tt.checks))
			}
		})
	}
}

func TestCheckTimeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		time.Sleep(500 * time.Millisecond)
		return nil
	})

	start := time.Now()
	status := checker.CheckReadiness(context.Background())
	if time.Since(start) > 300*time.Millisecond {
		t.Error("readiness waited for a check past its timeout")
	}

	result := status.Checks["slow"]
	if result.Status != StatusUnhealthy || result.Message != ErrCheckTimeout.Error() {
		t.Errorf("slow check = %+v", result)
	}
}

func TestMarkShuttingDown(t *testing.T) {
	checker := New(time.Second)
	checker.MarkShuttingDown()

	status := checker.CheckReadiness(context.Background())
	if status.Status != StatusShuttingDown || status.Ready() {
		t.Errorf("status = %+v", status)
	}
	if live := checker.CheckLiveness(context.Background()); live.Status != StatusOK {
		t.Errorf("liveness = %q, want ok while draining", live.Status)
	}
}

func TestHandlers(t *testing.T) {
	healthy := New(time.Second)
	healthy.RegisterCheck("config", func(context.Context) error { return nil })

	broken := New(time.Second)
	broken.RegisterCheck("journal", func(context.Context) error { return errors.New("down") })

	tests := []struct {
		name       string
		handler    http.HandlerFunc
		method     string
		wantCode   int
		wantStatus string
	}{
		{"liveness", healthy.LivenessHandler(), http.MethodGet, http.StatusOK, StatusOK},
		{"readiness ok", healthy.ReadinessHandler(), http.MethodGet, http.StatusOK, StatusReady},
		{"readiness degraded", broken.ReadinessHandler(), http.MethodGet, http.StatusServiceUnavailable, StatusDegraded},
		{"readiness head", broken.ReadinessHandler(), http.MethodHead, http.StatusServiceUnavailable, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", nil)
			rec := httptest.NewRecorder()
			tt.handler(rec, req)

			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if tt.wantStatus == "" {
				if rec.Body.Len() != 0 {
					t.Errorf("HEAD response has body %q", rec.Body.String())
				}
				return
			}

			var body HealthStatus
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", body.Status, tt.wantStatus)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	VersionHandler("1.0.0", "abc123", "2026-10-19")(rec, httptest.NewRequest(http.MethodGet, "/version", nil))

	var info VersionInfo
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Version != "1.0.0" || info.Commit != "abc123" || info.GoVersion == "" {
		t.Errorf("info = %+v", info)
	}
}
