package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/spf13/cobra"
)

// APIKeyPrefix starts every generated API key.
const APIKeyPrefix = "sk_"

var keysFlags struct {
	subject   string
	tenant    string
	secretDir string
	name      string
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage API keys",
	Long: `Generate API keys for the context.api_keys extractor.

Keys are 32 random bytes, base64url encoded, prefixed with "sk_". Without
--secret-dir the key is printed together with a configuration snippet.
With --secret-dir it is written to <dir>/<name> with mode 0600 and the
snippet references it as ${secret:<name>}, so the key never appears in the
configuration file.

Examples:
  # Print a new key for a service
  shuttle keys generate --subject billing-svc --tenant acme

  # Store the key as a file secret
  shuttle keys generate --subject billing-svc --secret-dir /run/secrets --name billing-key`,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new API key",
	Args:  cobra.NoArgs,
	RunE:  generateKey,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)

	keysGenerateCmd.Flags().StringVar(&keysFlags.subject, "subject", "", "subject the key authenticates (required)")
	keysGenerateCmd.Flags().StringVar(&keysFlags.tenant, "tenant", "", "tenant of the subject")
	keysGenerateCmd.Flags().StringVar(&keysFlags.secretDir, "secret-dir", "", "write the key to this secrets directory")
	keysGenerateCmd.Flags().StringVar(&keysFlags.name, "name", "", "secret name (defaults to <subject>-api-key)")
	_ = keysGenerateCmd.MarkFlagRequired("subject")
}

var secretNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func generateKey(cmd *cobra.Command, args []string) error {
	key, err := newAPIKey()
	if err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}

	out := cmd.OutOrStdout()
	ref := key
	if keysFlags.secretDir != "" {
		name := keysFlags.name
		if name == "" {
			name = keysFlags.subject + "-api-key"
		}
		if !secretNamePattern.MatchString(name) {
			return fmt.Errorf("invalid secret name %q", name)
		}

		path, err := writeSecret(keysFlags.secretDir, name, key)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Key written to %s\n\n", path)
		ref = "${secret:" + name + "}"
	} else {
		fmt.Fprintf(out, "API Key: %s\n\n", key)
		fmt.Fprintln(out, "⚠️  Warning: Store the key securely and never commit it to version control")
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Configuration snippet:")
	fmt.Fprintln(out, "context:")
	fmt.Fprintln(out, "  api_keys:")
	fmt.Fprintln(out, "    enabled: true")
	fmt.Fprintln(out, "    keys:")
	fmt.Fprintf(out, "      - key: %q\n", ref)
	fmt.Fprintf(out, "        subject: %q\n", keysFlags.subject)
	if keysFlags.tenant != "" {
		fmt.Fprintf(out, "        tenant: %q\n", keysFlags.tenant)
	}
	return nil
}

func newAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return APIKeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// writeSecret stores value as dir/name with owner-only permissions, the
// only mode the file secret provider accepts.
func writeSecret(dir, name, value string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create secrets directory: %w", err)
	}

	path := filepath.Join(dir, name)
	// #nosec G304 - user-specified secrets directory is expected for a CLI tool.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to create secret file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(value); err != nil {
		return "", fmt.Errorf("failed to write secret: %w", err)
	}
	return path, nil
}
