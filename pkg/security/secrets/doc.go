/*
Package secrets resolves ${secret:name} references in configuration values.

	context:
	  jwt:
	    enabled: true
	    secret: "${secret:jwt-signing-key}"

Providers are consulted in order. The environment provider reads
SHUTTLE_SECRET_JWT_SIGNING_KEY; the file provider, enabled by
security.secrets.dir, reads <dir>/jwt-signing-key and refuses files that
group or others can read.

	mgr, files, err := secrets.FromConfig(&cfg.Security.Secrets, logger)
	if err != nil {
		return err
	}
	resolved, err := mgr.ResolveConfig(ctx, cfg)

Resolved values never go back into the shared configuration, so a reload
or a config dump keeps the reference rather than the secret.
*/
package secrets
