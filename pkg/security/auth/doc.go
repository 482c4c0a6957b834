// Package auth authenticates requests by API key and seeds the request
// scope with the key's subject and tenant.
//
//	validator := auth.FromConfig(&cfg.Context.APIKeys)
//	src := auth.Source{Header: "X-API-Key", QueryParam: "api_key"}
//	scope.Middleware(scope.WithExtractor(auth.ScopeExtractor(validator, src, false)))
//
// The query parameter exists for browser EventSource clients, which cannot
// set request headers. Access logs record only the path, never the query.
package auth
