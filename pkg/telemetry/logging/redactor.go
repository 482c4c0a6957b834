package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// redactedValue replaces values that must never be logged.
const redactedValue = "***"

// DefaultSensitiveKeys are matched case-insensitively as substrings of
// attribute keys when no keys are configured.
var DefaultSensitiveKeys = []string{"authorization", "token", "secret", "password", "api_key", "cookie"}

// Redactor masks sensitive values in log attributes. Values are masked
// when their key looks sensitive or when the value itself matches a
// credential pattern.
type Redactor struct {
	keys     []string
	patterns []redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

var defaultPatterns = []redactPattern{
	{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
	{regexp.MustCompile(`(?i)(password|passwd|pwd)[:=]\s*[^\s&]+`), "$1=***"},
	{regexp.MustCompile(`\beyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "jwt-***"},
}

// NewRedactor creates a Redactor for the given sensitive key fragments.
// An empty list uses DefaultSensitiveKeys.
func NewRedactor(keys []string) *Redactor {
	if len(keys) == 0 {
		keys = DefaultSensitiveKeys
	}
	lower := make([]string, 0, len(keys))
	for _, k := range keys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lower = append(lower, k)
		}
	}
	return &Redactor{keys: lower, patterns: defaultPatterns}
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindGroup:
		return a
	case slog.KindString:
		if r.IsSensitiveKey(a.Key) {
			return slog.String(a.Key, MaskValue(a.Value.String()))
		}
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	default:
		if r.IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		return a
	}
}

// IsSensitiveKey reports whether key names a sensitive value.
func (r *Redactor) IsSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range r.keys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// RedactString masks credential patterns found inside value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// MaskValue keeps a four character hint of long values and hides the rest.
func MaskValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return redactedValue
	}
	return v[:4] + redactedValue
}
