/*
Package security hardens shuttle responses and authenticates its clients.

# Response Headers

Policy values write hardening headers onto a response before the handler
runs. Headers a handler sets itself win, because the handler writes after
the policy:

	policies := security.FromConfig(&cfg.Security)
	router.Use(security.Middleware(policies))

# Subpackages

  - auth: API key authentication that seeds the request scope
  - secrets: ${secret:name} resolution from the environment and files
  - tls: HTTPS termination with certificate reload and client identity
*/
package security
