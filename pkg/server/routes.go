package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"mercator-hq/shuttle/pkg/httperr"
	"mercator-hq/shuttle/pkg/requestid"
	"mercator-hq/shuttle/pkg/scope"
	"mercator-hq/shuttle/pkg/scope/extract"
	"mercator-hq/shuttle/pkg/security"
	"mercator-hq/shuttle/pkg/security/auth"
	tlsconf "mercator-hq/shuttle/pkg/security/tls"
	"mercator-hq/shuttle/pkg/server/middleware"
	"mercator-hq/shuttle/pkg/telemetry/health"
)

// setupRoutes builds the router and middleware chain, outermost first:
// recovery, request id, tracing, logging, metrics, security headers, CORS.
// Application routes additionally run inside a request scope.
func (s *Server) setupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(s.logger))
	if s.config.RequestID.Enabled {
		r.Use(requestid.Middleware(
			requestid.WithHeaderName(s.config.RequestID.Header),
			requestid.WithTrustIncoming(s.config.RequestID.TrustIncoming),
			requestid.WithLogger(s.logger),
		))
	}
	if s.tracer != nil {
		r.Use(middleware.Tracing(s.tracer))
	}
	r.Use(middleware.Logging(s.logger))
	if s.collector != nil {
		r.Use(middleware.Metrics(s.collector))
	}
	r.Use(security.Middleware(security.FromConfig(&s.config.Security)))
	if c := s.config.Server.CORS; c.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   c.AllowedOrigins,
			AllowedMethods:   c.AllowedMethods,
			AllowedHeaders:   c.AllowedHeaders,
			ExposedHeaders:   c.ExposedHeaders,
			AllowCredentials: c.AllowCredentials,
			MaxAge:           c.MaxAge,
		}))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		_ = httperr.Write(w, httperr.New("route not found", httperr.TypeNotFound, ""))
	})

	r.Get("/healthz", s.health.LivenessHandler())
	r.Head("/healthz", s.health.LivenessHandler())
	r.Get("/readyz", s.health.ReadinessHandler())
	r.Head("/readyz", s.health.ReadinessHandler())
	r.Get("/version", health.VersionHandler(s.version.Version, s.version.Commit, s.version.BuildTime))
	if s.collector != nil && s.config.Telemetry.Metrics.Enabled {
		r.Method(http.MethodGet, s.config.Telemetry.Metrics.Path, s.collector.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(s.scopeMiddleware())
		for _, register := range s.routes {
			register(r)
		}
	})

	return r
}

// scopeMiddleware opens a request scope seeded by the extractors enabled
// in the context section. Later extractors overwrite keys set by earlier
// ones, so verified identities win over plain headers.
func (s *Server) scopeMiddleware() func(http.Handler) http.Handler {
	opts := []scope.Option{scope.WithLogger(s.logger)}
	if s.collector != nil {
		opts = append(opts, scope.WithObserver(s.collector))
	}
	for _, e := range s.extractors() {
		opts = append(opts, scope.WithExtractor(e))
	}
	return scope.Middleware(opts...)
}

func (s *Server) extractors() []scope.Extractor {
	ctxCfg := &s.config.Context
	var out []scope.Extractor

	if s.config.RequestID.Enabled {
		out = append(out, requestid.ScopeExtractor())
	}
	if len(ctxCfg.Headers) > 0 {
		out = append(out, extract.Headers(ctxCfg.Headers))
	}
	if len(ctxCfg.BodyFields) > 0 {
		out = append(out, extract.JSONBody(ctxCfg.BodyFields, ctxCfg.MaxBodyBytes))
	}
	if tlsCfg := s.config.Server.TLS; tlsCfg.Enabled && tlsCfg.ClientCAFile != "" {
		out = append(out, tlsconf.ScopeExtractor(tlsCfg.IdentitySource))
	}
	if keys := ctxCfg.APIKeys; keys.Enabled {
		out = append(out, auth.ScopeExtractor(
			auth.FromConfig(&keys),
			auth.Source{Header: keys.Header, QueryParam: keys.QueryParam},
			keys.Required,
		))
	}
	if jwt := ctxCfg.JWT; jwt.Enabled {
		out = append(out, extract.BearerClaims(extract.ClaimsConfig{
			Secret:   []byte(jwt.Secret),
			Issuer:   jwt.Issuer,
			Audience: jwt.Audience,
			Required: jwt.Required,
		}))
	}
	return out
}
