package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mercator-hq/shuttle/pkg/config"
)

func TestStrictTransportSecurityValue(t *testing.T) {
	tests := []struct {
		name   string
		policy StrictTransportSecurity
		want   string
	}{
		{"max age only", StrictTransportSecurity{MaxAge: time.Hour}, "max-age=3600"},
		{"subdomains", StrictTransportSecurity{MaxAge: time.Hour, IncludeSubdomains: true}, "max-age=3600; includeSubDomains"},
		{"preload", StrictTransportSecurity{MaxAge: 365 * 24 * time.Hour, IncludeSubdomains: true, Preload: true}, "max-age=31536000; includeSubDomains; preload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.Value(); got != tt.want {
				t.Errorf("Value() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default().Security
	cfg.ContentSecurityPolicy = "default-src 'none'"
	cfg.HSTS.Enabled = true
	cfg.DefaultHeaders = map[string]string{"Cache-Control": "no-store", "X-Service": "shuttle"}

	h := http.Header{}
	h.Set("Cache-Control", "no-cache")
	FromConfig(&cfg).Protect(h)

	want := map[string]string{
		HeaderContentSecurityPolicy:   "default-src 'none'",
		HeaderStrictTransportSecurity: "max-age=31536000",
		HeaderFrameOptions:            "DENY",
		HeaderContentTypeOptions:      "nosniff",
		HeaderReferrerPolicy:          "no-referrer",
		"X-Service":                   "shuttle",
		"Cache-Control":               "no-cache",
	}
	for name, value := range want {
		if got := h.Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
}

func TestFromConfigDisabled(t *testing.T) {
	cfg := config.SecurityConfig{}
	if p := FromConfig(&cfg); len(p) != 0 {
		t.Errorf("FromConfig(empty) = %d policies, want 0", len(p))
	}
}

func TestMiddleware(t *testing.T) {
	policies := Policies{
		FrameOptions("DENY"),
		NoSniff{},
		PolicyFunc(func(h http.Header) { h.Set("X-Policy", "custom") }),
	}

	handler := Middleware(policies)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(HeaderFrameOptions, "SAMEORIGIN")
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get(HeaderFrameOptions); got != "SAMEORIGIN" {
		t.Errorf("handler override lost: %s = %q", HeaderFrameOptions, got)
	}
	if got := rec.Header().Get(HeaderContentTypeOptions); got != "nosniff" {
		t.Errorf("%s = %q", HeaderContentTypeOptions, got)
	}
	if got := rec.Header().Get("X-Policy"); got != "custom" {
		t.Errorf("X-Policy = %q", got)
	}
}
