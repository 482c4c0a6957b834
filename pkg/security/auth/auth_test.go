package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"mercator-hq/shuttle/pkg/config"
	"mercator-hq/shuttle/pkg/scope"
	"mercator-hq/shuttle/pkg/scope/extract"
)

func testValidator() *APIKeyValidator {
	return FromConfig(&config.APIKeysConfig{
		Keys: []config.APIKeyConfig{
			{Key: "sk-alice", Subject: "alice", Tenant: "acme"},
			{Key: "sk-bob", Subject: "bob"},
			{Key: "sk-old", Subject: "carol", Disabled: true},
		},
	})
}

func TestValidate(t *testing.T) {
	v := testValidator()

	tests := []struct {
		key     string
		subject string
		wantErr error
	}{
		{"sk-alice", "alice", nil},
		{"sk-bob", "bob", nil},
		{"sk-old", "", ErrDisabledKey},
		{"sk-unknown", "", ErrInvalidKey},
		{"", "", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			info, err := v.Validate(tt.key)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
			if err == nil && info.Subject != tt.subject {
				t.Errorf("Subject = %q, want %q", info.Subject, tt.subject)
			}
		})
	}
}

func TestAddRemove(t *testing.T) {
	v := NewAPIKeyValidator(nil)
	v.Add(&APIKeyInfo{Key: "k", Subject: "svc", Enabled: true})
	if _, err := v.Validate("k"); err != nil {
		t.Fatalf("Validate() after Add error = %v", err)
	}
	v.Remove("k")
	if v.Len() != 0 {
		t.Errorf("Len() = %d after Remove", v.Len())
	}
}

func TestScopeExtractor(t *testing.T) {
	v := testValidator()
	src := Source{Header: "X-API-Key", QueryParam: "api_key"}

	tests := []struct {
		name     string
		header   string
		query    string
		required bool
		want     map[string]any
		wantErr  bool
	}{
		{name: "header", header: "sk-alice", want: map[string]any{"subject": "alice", "tenant": "acme"}},
		{name: "query", query: "sk-bob", want: map[string]any{"subject": "bob"}},
		{name: "header wins", header: "sk-alice", query: "sk-bob", want: map[string]any{"subject": "alice", "tenant": "acme"}},
		{name: "absent optional", want: nil},
		{name: "absent required", required: true, wantErr: true},
		{name: "unknown", header: "sk-nope", wantErr: true},
		{name: "disabled", header: "sk-old", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := "/v1/events/clock"
			if tt.query != "" {
				target += "?api_key=" + tt.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}

			got, err := ScopeExtractor(v, src, tt.required)(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var keyErr *KeyError
				if !errors.As(err, &keyErr) {
					t.Fatalf("error = %T, want *KeyError", err)
				}
				if code := keyErr.HTTPError().Error.StatusCode(); code != http.StatusUnauthorized {
					t.Errorf("status = %d, want 401", code)
				}
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("data = %v, want %v", got, tt.want)
			}
			for k, want := range tt.want {
				if got[k] != want {
					t.Errorf("%s = %v, want %v", k, got[k], want)
				}
			}
		})
	}
}

func TestScopeExtractorThroughMiddleware(t *testing.T) {
	v := testValidator()
	var subject string
	handler := scope.Middleware(
		scope.WithExtractor(ScopeExtractor(v, Source{Header: "X-API-Key"}, true)),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _, _ = scope.Value[string](r.Context(), extract.KeySubject)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", "sk-alice")
	handler.ServeHTTP(rec, req)
	if subject != "alice" {
		t.Errorf("subject = %q, want alice", subject)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing key status = %d, want 401", rec.Code)
	}
}
