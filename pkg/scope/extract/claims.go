package extract

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"mercator-hq/shuttle/pkg/httperr"
	"mercator-hq/shuttle/pkg/scope"
)

// Scope keys written by BearerClaims.
const (
	KeySubject = "subject"
	KeyTenant  = "tenant"
	KeyScopes  = "scopes"
)

// ClaimsConfig configures BearerClaims.
type ClaimsConfig struct {
	// Secret is the HMAC key used to verify tokens.
	Secret []byte

	// Issuer is the expected iss claim. Empty disables the check.
	Issuer string

	// Audience is the expected aud claim. Empty disables the check.
	Audience string

	// UserClaim is the claim copied to KeySubject. Default: "sub".
	UserClaim string

	// TenantClaim is the claim copied to KeyTenant. Default: "tenant_id".
	TenantClaim string

	// ScopesClaim holds a space-separated string or an array. Default: "scope".
	ScopesClaim string

	// Required rejects requests without a bearer token.
	Required bool
}

func (c *ClaimsConfig) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TenantClaim == "" {
		c.TenantClaim = "tenant_id"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
}

// TokenError reports a missing or invalid bearer token.
type TokenError struct {
	Err error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("invalid bearer token: %v", e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// HTTPError makes the scope middleware answer 401 instead of 400.
func (e *TokenError) HTTPError() *httperr.ErrorResponse {
	return httperr.New(e.Error(), httperr.TypeAuthentication, httperr.CodeInvalidToken)
}

var errMissingToken = errors.New("missing bearer token")

// BearerClaims verifies an HMAC-signed JWT from the Authorization header and
// copies its subject, tenant and scopes into the scope. Requests without a
// bearer token yield no data unless cfg.Required is set.
func BearerClaims(cfg ClaimsConfig) scope.Extractor {
	cfg.applyDefaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}
	parser := jwtlib.NewParser(opts...)

	return func(r *http.Request) (map[string]any, error) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			if cfg.Required {
				return nil, &TokenError{Err: errMissingToken}
			}
			return map[string]any{}, nil
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if tokenStr == "" {
			return nil, &TokenError{Err: errMissingToken}
		}

		claims := jwtlib.MapClaims{}
		token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (interface{}, error) {
			return cfg.Secret, nil
		})
		if err != nil {
			return nil, &TokenError{Err: err}
		}
		if !token.Valid {
			return nil, &TokenError{Err: errors.New("token not valid")}
		}

		subject := claimString(claims, cfg.UserClaim)
		if subject == "" {
			return nil, &TokenError{Err: fmt.Errorf("missing %q claim", cfg.UserClaim)}
		}

		data := map[string]any{KeySubject: subject}
		if tenant := claimString(claims, cfg.TenantClaim); tenant != "" {
			data[KeyTenant] = tenant
		}
		if scopes := extractScopes(claims, cfg.ScopesClaim); len(scopes) > 0 {
			data[KeyScopes] = scopes
		}
		return data, nil
	}
}

func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractScopes accepts either "read write" or ["read", "write"].
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		return strings.Fields(v)
	case []interface{}:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	default:
		return nil
	}
}
