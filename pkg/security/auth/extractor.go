package auth

import (
	"errors"
	"fmt"
	"net/http"

	"mercator-hq/shuttle/pkg/httperr"
	"mercator-hq/shuttle/pkg/scope"
	"mercator-hq/shuttle/pkg/scope/extract"
)

// KeyError reports a missing or rejected API key.
type KeyError struct {
	Err error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("api key: %v", e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// HTTPError makes the scope middleware answer 401.
func (e *KeyError) HTTPError() *httperr.ErrorResponse {
	return httperr.New(e.Error(), httperr.TypeAuthentication, httperr.CodeInvalidAPIKey)
}

var errMissingKey = errors.New("missing API key")

// Source says where a request carries its key. The header is tried first.
type Source struct {
	Header     string
	QueryParam string
}

// Key returns the key presented by r, or "".
func (s Source) Key(r *http.Request) string {
	if s.Header != "" {
		if key := r.Header.Get(s.Header); key != "" {
			return key
		}
	}
	if s.QueryParam != "" {
		return r.URL.Query().Get(s.QueryParam)
	}
	return ""
}

// ScopeExtractor validates the request's API key and copies the key's
// subject and tenant into the scope under the same keys bearer claims use.
// Requests without a key yield no data unless required is set.
func ScopeExtractor(v *APIKeyValidator, src Source, required bool) scope.Extractor {
	return func(r *http.Request) (map[string]any, error) {
		key := src.Key(r)
		if key == "" {
			if required {
				return nil, &KeyError{Err: errMissingKey}
			}
			return nil, nil
		}

		info, err := v.Validate(key)
		if err != nil {
			return nil, &KeyError{Err: err}
		}

		data := map[string]any{extract.KeySubject: info.Subject}
		if info.Tenant != "" {
			data[extract.KeyTenant] = info.Tenant
		}
		return data, nil
	}
}
