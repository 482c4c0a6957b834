package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"mercator-hq/shuttle/pkg/config"
	tlsconf "mercator-hq/shuttle/pkg/security/tls"
	"mercator-hq/shuttle/pkg/telemetry/health"
	"mercator-hq/shuttle/pkg/telemetry/metrics"
	"mercator-hq/shuttle/pkg/telemetry/tracing"
)

// VersionInfo identifies the running build on /version.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// Server is the shuttle HTTP server.
type Server struct {
	config    *config.Config
	logger    *slog.Logger
	collector *metrics.Collector
	tracer    *tracing.Tracer
	health    *health.Checker
	version   VersionInfo
	routes    []func(chi.Router)

	handler    http.Handler
	httpServer *http.Server
	cancelBase context.CancelFunc

	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for the server and its middleware.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCollector enables request metrics, scope observation and the
// metrics endpoint.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Server) { s.collector = c }
}

// WithTracer enables request spans.
func WithTracer(t *tracing.Tracer) Option {
	return func(s *Server) { s.tracer = t }
}

// WithHealth sets the checker behind /healthz and /readyz.
func WithHealth(c *health.Checker) Option {
	return func(s *Server) {
		if c != nil {
			s.health = c
		}
	}
}

// WithVersion sets the build information reported on /version.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithRoutes registers application routes. They run inside the request
// scope, so handlers can read scope values from their context.
func WithRoutes(register func(chi.Router)) Option {
	return func(s *Server) { s.routes = append(s.routes, register) }
}

// New creates a server for cfg. Secret references in cfg must already be
// resolved.
func New(cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		config: cfg,
		logger: slog.Default(),
		health: health.New(0),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.setupRoutes()
	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Health returns the server's health checker.
func (s *Server) Health() *health.Checker {
	return s.health
}

// Start listens on the configured address and serves until ctx is done or
// the listener fails. Cancelling ctx shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Server.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done. With TLS enabled the
// certificate is loaded before the first connection is accepted.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		_ = ln.Close()
		return errors.New("server is already running")
	}
	s.isRunning = true

	// Streams derive their contexts from baseCtx, which is cancelled as
	// soon as shutdown starts so open event streams end and drain.
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelBase = cancelBase
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: s.config.Server.MaxHeaderBytes,
		BaseContext:    func(net.Listener) context.Context { return baseCtx },
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	s.httpServer.RegisterOnShutdown(cancelBase)
	s.mu.Unlock()

	tlsCfg, err := s.configureTLS(baseCtx)
	if err != nil {
		_ = ln.Close()
		cancelBase()
		s.markStopped()
		return fmt.Errorf("failed to configure TLS: %w", err)
	}
	s.httpServer.TLSConfig = tlsCfg

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting shuttle server",
			"address", ln.Addr().String(),
			"tls_enabled", tlsCfg != nil,
		)
		var err error
		if tlsCfg != nil {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.markStopped()
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown fails readiness, stops accepting connections, ends open streams
// and waits up to the configured shutdown timeout for handlers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		running := s.isRunning
		s.mu.RUnlock()
		if !running {
			return
		}

		s.health.MarkShuttingDown()
		s.logger.Info("initiating graceful shutdown", "timeout", s.config.Server.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			_ = s.httpServer.Close()
		}
		s.cancelBase()
		s.markStopped()

		s.logger.Info("shuttle server stopped")
	})

	return shutdownErr
}

// IsRunning reports whether the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Server) markStopped() {
	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()
}

func (s *Server) configureTLS(ctx context.Context) (*tls.Config, error) {
	cfg := &s.config.Server.TLS
	if !cfg.Enabled {
		return nil, nil
	}

	reloader := tlsconf.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, s.logger)
	if err := reloader.Start(ctx); err != nil {
		return nil, err
	}
	return tlsconf.ServerConfig(cfg, reloader)
}
