package auth

// APIKeyInfo describes an accepted API key.
type APIKeyInfo struct {
	Key     string
	Subject string
	Tenant  string
	Enabled bool
}
