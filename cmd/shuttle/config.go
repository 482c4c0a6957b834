package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"mercator-hq/shuttle/pkg/cli"
	"mercator-hq/shuttle/pkg/config"
	"mercator-hq/shuttle/pkg/security/secrets"
	"mercator-hq/shuttle/pkg/telemetry/logging"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the configuration",
	Long: `Validate the configuration file and print the effective configuration.

The effective configuration is the file decoded on top of the defaults with
SHUTTLE_* environment overrides applied. Credentials are masked.

Examples:
  # Validate a configuration file
  shuttle config validate --config config.yaml

  # Print the effective configuration
  shuttle config show --config config.yaml`,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.LoadConfigWithEnvOverrides(cfgFile); err != nil {
			return cli.NewConfigError("", err.Error())
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
		if err != nil {
			return cli.NewConfigError("", err.Error())
		}
		return cli.NewFormatter(cli.FormatYAML).FormatTo(cmd.OutOrStdout(), maskCredentials(cfg))
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd, configShowCmd)
}

// maskCredentials returns a copy of cfg safe to print. Unresolved secret
// references are kept since they reveal nothing.
func maskCredentials(cfg *config.Config) *config.Config {
	out := *cfg
	out.Context.JWT.Secret = maskCredential(cfg.Context.JWT.Secret)

	if len(cfg.Context.APIKeys.Keys) > 0 {
		keys := make([]config.APIKeyConfig, len(cfg.Context.APIKeys.Keys))
		for i, k := range cfg.Context.APIKeys.Keys {
			k.Key = maskCredential(k.Key)
			keys[i] = k
		}
		out.Context.APIKeys.Keys = keys
	}
	out.Journal.Postgres.DSN = maskDSN(cfg.Journal.Postgres.DSN)
	return &out
}

// maskDSN hides the password of a URL DSN and masks any other form whole.
func maskDSN(dsn string) string {
	if dsn == "" || secrets.HasReference(dsn) {
		return dsn
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		if _, ok := u.User.Password(); ok {
			return u.Redacted()
		}
		return dsn
	}
	return maskCredential(dsn)
}

func maskCredential(v string) string {
	if v == "" || secrets.HasReference(v) {
		return v
	}
	return logging.MaskValue(v)
}
