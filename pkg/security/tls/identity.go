package tls

import (
	"crypto/x509"
	"net/http"

	"mercator-hq/shuttle/pkg/scope"
)

// ClientScopeKey is the scope key holding the client certificate identity.
const ClientScopeKey = "client"

// Identity returns the certificate field selected by source:
// "subject.CN" (the default), "subject.OU", "subject.O" or "SAN" (first
// DNS name). It returns "" when the field is empty.
func Identity(cert *x509.Certificate, source string) string {
	if cert == nil {
		return ""
	}

	switch source {
	case "subject.CN", "":
		return cert.Subject.CommonName
	case "subject.OU":
		if len(cert.Subject.OrganizationalUnit) > 0 {
			return cert.Subject.OrganizationalUnit[0]
		}
	case "subject.O":
		if len(cert.Subject.Organization) > 0 {
			return cert.Subject.Organization[0]
		}
	case "SAN":
		if len(cert.DNSNames) > 0 {
			return cert.DNSNames[0]
		}
	}
	return ""
}

// ClientCertificate returns the verified leaf presented by the client, or
// nil for plain HTTP and anonymous clients.
func ClientCertificate(r *http.Request) *x509.Certificate {
	if r.TLS == nil || len(r.TLS.PeerCertificates) == 0 {
		return nil
	}
	return r.TLS.PeerCertificates[0]
}

// ScopeExtractor copies the client certificate identity into the request
// scope under ClientScopeKey. Requests without a certificate contribute
// nothing.
func ScopeExtractor(source string) scope.Extractor {
	return func(r *http.Request) (map[string]any, error) {
		id := Identity(ClientCertificate(r), source)
		if id == "" {
			return nil, nil
		}
		return map[string]any{ClientScopeKey: id}, nil
	}
}
