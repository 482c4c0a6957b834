package main

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/shuttle/pkg/cli"
	tlsconf "mercator-hq/shuttle/pkg/security/tls"
)

var certsCmd = &cobra.Command{
	Use:   "certs",
	Short: "Manage TLS certificates",
	Long: `Manage TLS certificates for the shuttle server.

Subcommands:
  generate - Generate a self-signed certificate for testing
  info     - Display certificate details and check a key pair

Examples:
  # Generate a self-signed certificate for localhost
  shuttle certs generate --host localhost,127.0.0.1

  # Display certificate information and verify the key matches
  shuttle certs info certs/cert.pem --key certs/key.pem`,
}

var generateFlags struct {
	hosts    string
	org      string
	validity int
	keySize  int
	output   string
}

var certsGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate self-signed certificate",
	Long: `Generate a self-signed TLS certificate and RSA private key for testing.

The certificate is valid for server and client authentication, so the same
pair can be used as client_ca_file when trying out mutual TLS. The private
key is written with mode 0600.

⚠️  WARNING: Self-signed certificates are for TESTING ONLY.`,
	Args: cobra.NoArgs,
	RunE: generateCertificate,
}

var infoFlags struct {
	keyFile string
	output  string
}

var certsInfoCmd = &cobra.Command{
	Use:   "info <cert-file>",
	Short: "Display certificate details",
	Args:  cobra.ExactArgs(1),
	RunE:  certificateInfo,
}

func init() {
	rootCmd.AddCommand(certsCmd)
	certsCmd.AddCommand(certsGenerateCmd, certsInfoCmd)

	certsGenerateCmd.Flags().StringVar(&generateFlags.hosts, "host", "localhost", "comma-separated hostnames and IPs")
	certsGenerateCmd.Flags().StringVar(&generateFlags.org, "org", "Shuttle", "organization name")
	certsGenerateCmd.Flags().IntVar(&generateFlags.validity, "validity", 365, "validity in days")
	certsGenerateCmd.Flags().IntVar(&generateFlags.keySize, "key-size", 2048, "RSA key size (2048, 3072, 4096)")
	certsGenerateCmd.Flags().StringVarP(&generateFlags.output, "output", "o", "certs", "output directory")

	certsInfoCmd.Flags().StringVar(&infoFlags.keyFile, "key", "", "private key to check against the certificate")
	certsInfoCmd.Flags().StringVarP(&infoFlags.output, "output", "o", "text", "output format: text, json, yaml")
}

// selfSignedRequest describes a certificate to generate.
type selfSignedRequest struct {
	Hosts    []string
	Org      string
	Validity time.Duration
	KeySize  int
}

func generateCertificate(cmd *cobra.Command, args []string) error {
	if generateFlags.validity < 1 {
		return fmt.Errorf("invalid validity: %d days", generateFlags.validity)
	}

	var hosts []string
	for _, h := range strings.Split(generateFlags.hosts, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hosts = append(hosts, h)
		}
	}

	certPath, keyPath, err := writeSelfSigned(generateFlags.output, selfSignedRequest{
		Hosts:    hosts,
		Org:      generateFlags.org,
		Validity: time.Duration(generateFlags.validity) * 24 * time.Hour,
		KeySize:  generateFlags.keySize,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Certificate generated: %s\n", certPath)
	fmt.Fprintf(out, "✓ Private key generated: %s\n", keyPath)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "⚠️  WARNING: Self-signed certificates are for TESTING ONLY")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "To use with shuttle, add to your config.yaml:")
	fmt.Fprintln(out, "server:")
	fmt.Fprintln(out, "  tls:")
	fmt.Fprintln(out, "    enabled: true")
	fmt.Fprintf(out, "    cert_file: %q\n", certPath)
	fmt.Fprintf(out, "    key_file: %q\n", keyPath)
	return nil
}

// writeSelfSigned writes cert.pem and key.pem into dir.
func writeSelfSigned(dir string, req selfSignedRequest) (certPath, keyPath string, err error) {
	if req.KeySize != 2048 && req.KeySize != 3072 && req.KeySize != 4096 {
		return "", "", fmt.Errorf("invalid key size: %d (must be 2048, 3072, or 4096)", req.KeySize)
	}
	if len(req.Hosts) == 0 {
		return "", "", errors.New("at least one host is required")
	}

	var dnsNames []string
	var ipAddresses []net.IP
	for _, host := range req.Hosts {
		if ip := net.ParseIP(host); ip != nil {
			ipAddresses = append(ipAddresses, ip)
		} else {
			dnsNames = append(dnsNames, host)
		}
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, req.KeySize)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate private key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate serial number: %w", err)
	}

	notBefore := time.Now()
	template := x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{req.Org},
			CommonName:   req.Hosts[0],
		},
		NotBefore:             notBefore,
		NotAfter:              notBefore.Add(req.Validity),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              dnsNames,
		IPAddresses:           ipAddresses,
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	if err != nil {
		return "", "", fmt.Errorf("failed to create certificate: %w", err)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}

	certPath = filepath.Join(dir, "cert.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})
	// #nosec G306 - certificates are public.
	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		return "", "", fmt.Errorf("failed to write certificate: %w", err)
	}

	keyPath = filepath.Join(dir, "key.pem")
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return "", "", fmt.Errorf("failed to write private key: %w", err)
	}
	return certPath, keyPath, nil
}

// certInfo is printed by certs info.
type certInfo struct {
	Subject     string    `json:"subject" yaml:"subject"`
	Issuer      string    `json:"issuer" yaml:"issuer"`
	Serial      string    `json:"serial" yaml:"serial"`
	DNSNames    []string  `json:"dns_names,omitempty" yaml:"dns_names,omitempty"`
	IPAddresses []string  `json:"ip_addresses,omitempty" yaml:"ip_addresses,omitempty"`
	NotBefore   time.Time `json:"not_before" yaml:"not_before"`
	NotAfter    time.Time `json:"not_after" yaml:"not_after"`
	ExpiresIn   string    `json:"expires_in" yaml:"expires_in"`
	Fingerprint string    `json:"sha256_fingerprint" yaml:"sha256_fingerprint"`
	KeyMatches  *bool     `json:"key_matches,omitempty" yaml:"key_matches,omitempty"`
	Warnings    []string  `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

func (c certInfo) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Subject:     %s\n", c.Subject)
	fmt.Fprintf(&sb, "Issuer:      %s\n", c.Issuer)
	fmt.Fprintf(&sb, "Serial:      %s\n", c.Serial)
	if len(c.DNSNames) > 0 {
		fmt.Fprintf(&sb, "DNS Names:   %s\n", strings.Join(c.DNSNames, ", "))
	}
	if len(c.IPAddresses) > 0 {
		fmt.Fprintf(&sb, "IPs:         %s\n", strings.Join(c.IPAddresses, ", "))
	}
	fmt.Fprintf(&sb, "Not Before:  %s\n", c.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(&sb, "Not After:   %s (%s)\n", c.NotAfter.Format(time.RFC3339), c.ExpiresIn)
	fmt.Fprintf(&sb, "SHA-256:     %s", c.Fingerprint)
	if c.KeyMatches != nil {
		fmt.Fprintf(&sb, "\nKey Matches: %v", *c.KeyMatches)
	}
	for _, w := range c.Warnings {
		fmt.Fprintf(&sb, "\n⚠️  %s", w)
	}
	return sb.String()
}

func certificateInfo(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(infoFlags.output)
	if err != nil {
		return err
	}
	info, err := inspectCertificate(args[0], infoFlags.keyFile, time.Now())
	if err != nil {
		return err
	}
	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), info); err != nil {
		return err
	}
	if info.KeyMatches != nil && !*info.KeyMatches {
		return errors.New("private key does not match certificate")
	}
	return nil
}

func inspectCertificate(certFile, keyFile string, now time.Time) (certInfo, error) {
	// #nosec G304 - user-specified certificate path is expected for a CLI tool.
	data, err := os.ReadFile(certFile)
	if err != nil {
		return certInfo{}, fmt.Errorf("failed to read certificate: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return certInfo{}, fmt.Errorf("%s does not contain a PEM certificate", certFile)
	}
	leaf, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return certInfo{}, fmt.Errorf("failed to parse certificate: %w", err)
	}

	sum := sha256.Sum256(leaf.Raw)
	info := certInfo{
		Subject:     leaf.Subject.String(),
		Issuer:      leaf.Issuer.String(),
		Serial:      leaf.SerialNumber.Text(16),
		DNSNames:    leaf.DNSNames,
		NotBefore:   leaf.NotBefore.UTC(),
		NotAfter:    leaf.NotAfter.UTC(),
		ExpiresIn:   tlsconf.ExpiresIn(leaf, now).Round(time.Hour).String(),
		Fingerprint: strings.ToUpper(hex.EncodeToString(sum[:])),
	}
	for _, ip := range leaf.IPAddresses {
		info.IPAddresses = append(info.IPAddresses, ip.String())
	}

	if keyFile != "" {
		pair, err := tls.LoadX509KeyPair(certFile, keyFile)
		matches := err == nil
		info.KeyMatches = &matches
		if err == nil {
			if err := tlsconf.ValidateCertificate(&pair, now); err != nil {
				info.Warnings = append(info.Warnings, err.Error())
			}
		}
	}
	if remaining := tlsconf.ExpiresIn(leaf, now); remaining > 0 && remaining < tlsconf.ExpiryWarning {
		info.Warnings = append(info.Warnings, "certificate expires within 30 days")
	} else if remaining <= 0 {
		info.Warnings = append(info.Warnings, "certificate has expired")
	}
	return info, nil
}
