package security

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"mercator-hq/shuttle/pkg/config"
)

// Header names set by the policies in this package.
const (
	HeaderContentSecurityPolicy   = "Content-Security-Policy"
	HeaderStrictTransportSecurity = "Strict-Transport-Security"
	HeaderFrameOptions            = "X-Frame-Options"
	HeaderContentTypeOptions      = "X-Content-Type-Options"
	HeaderReferrerPolicy          = "Referrer-Policy"
)

// Policy applies a protection to response headers.
type Policy interface {
	Protect(h http.Header)
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(h http.Header)

// Protect calls f.
func (f PolicyFunc) Protect(h http.Header) { f(h) }

// Policies applies each policy in order.
type Policies []Policy

// Protect applies every policy.
func (p Policies) Protect(h http.Header) {
	for _, policy := range p {
		policy.Protect(h)
	}
}

// ContentSecurityPolicy sets Content-Security-Policy.
type ContentSecurityPolicy string

// Protect sets the header when the policy is non-empty.
func (p ContentSecurityPolicy) Protect(h http.Header) {
	if p != "" {
		h.Set(HeaderContentSecurityPolicy, string(p))
	}
}

// StrictTransportSecurity sets Strict-Transport-Security.
type StrictTransportSecurity struct {
	MaxAge            time.Duration
	IncludeSubdomains bool
	Preload           bool
}

// Value renders the header value.
func (p StrictTransportSecurity) Value() string {
	var b strings.Builder
	b.WriteString("max-age=")
	b.WriteString(strconv.FormatInt(int64(p.MaxAge/time.Second), 10))
	if p.IncludeSubdomains {
		b.WriteString("; includeSubDomains")
	}
	if p.Preload {
		b.WriteString("; preload")
	}
	return b.String()
}

// Protect sets the header.
func (p StrictTransportSecurity) Protect(h http.Header) {
	h.Set(HeaderStrictTransportSecurity, p.Value())
}

// FrameOptions sets X-Frame-Options.
type FrameOptions string

// Protect sets the header when the value is non-empty.
func (p FrameOptions) Protect(h http.Header) {
	if p != "" {
		h.Set(HeaderFrameOptions, string(p))
	}
}

// NoSniff sets X-Content-Type-Options: nosniff.
type NoSniff struct{}

// Protect sets the header.
func (NoSniff) Protect(h http.Header) {
	h.Set(HeaderContentTypeOptions, "nosniff")
}

// ReferrerPolicy sets Referrer-Policy.
type ReferrerPolicy string

// Protect sets the header when the value is non-empty.
func (p ReferrerPolicy) Protect(h http.Header) {
	if p != "" {
		h.Set(HeaderReferrerPolicy, string(p))
	}
}

// DefaultHeaders sets each header the response does not already carry.
type DefaultHeaders map[string]string

// Protect adds the missing headers.
func (d DefaultHeaders) Protect(h http.Header) {
	for name, value := range d {
		if h.Get(name) == "" {
			h.Set(name, value)
		}
	}
}

// FromConfig builds the policies enabled by the security section.
func FromConfig(cfg *config.SecurityConfig) Policies {
	var p Policies
	if cfg.ContentSecurityPolicy != "" {
		p = append(p, ContentSecurityPolicy(cfg.ContentSecurityPolicy))
	}
	if cfg.HSTS.Enabled {
		p = append(p, StrictTransportSecurity{
			MaxAge:            cfg.HSTS.MaxAge,
			IncludeSubdomains: cfg.HSTS.IncludeSubdomains,
			Preload:           cfg.HSTS.Preload,
		})
	}
	if cfg.FrameOptions != "" {
		p = append(p, FrameOptions(cfg.FrameOptions))
	}
	if cfg.NoSniff {
		p = append(p, NoSniff{})
	}
	if cfg.ReferrerPolicy != "" {
		p = append(p, ReferrerPolicy(cfg.ReferrerPolicy))
	}
	if len(cfg.DefaultHeaders) > 0 {
		p = append(p, DefaultHeaders(cfg.DefaultHeaders))
	}
	return p
}

// Middleware applies policy to every response before next runs.
func Middleware(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy.Protect(w.Header())
			next.ServeHTTP(w, r)
		})
	}
}
