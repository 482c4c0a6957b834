/*
Package tls terminates HTTPS for shuttle.

# Server Configuration

	reloader := tls.NewCertificateReloader(cfg.CertFile, cfg.KeyFile, cfg.ReloadInterval, logger)
	if err := reloader.Start(ctx); err != nil {
		return err
	}
	tlsConfig, err := tls.ServerConfig(&cfg.Server.TLS, reloader)

The reloader polls the certificate and key files and swaps the pair when
either changes, so certificate renewal needs no restart. Certificates
outside their validity window are rejected on load; a failed reload keeps
serving the previous pair.

# Client Certificates

Setting client_ca_file turns on client certificate verification.
ScopeExtractor copies the verified identity into the request scope under
the "client" key, where handlers and log records can read it:

	scope.Middleware(scope.WithExtractor(tls.ScopeExtractor("subject.CN")))
*/
package tls
