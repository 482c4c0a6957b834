package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/shuttle/pkg/cli"
	"mercator-hq/shuttle/pkg/config"
	"mercator-hq/shuttle/pkg/security/secrets"
	"mercator-hq/shuttle/pkg/sse/journal"
)

var journalFlags struct {
	olderThan time.Duration
}

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Maintain the event journal",
	Long: `Maintain the event journal used for Last-Event-ID replay.

Only the sqlite and postgres backends outlive the server process, so
these commands require one of them. Secret references in the postgres
DSN are resolved as they are by serve.

Examples:
  # Remove entries older than the configured retention
  shuttle journal prune --config config.yaml

  # Remove entries older than one day
  shuttle journal prune --older-than 24h`,
}

var journalPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove journal entries past retention",
	Args:  cobra.NoArgs,
	RunE:  pruneJournal,
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalPruneCmd)

	journalPruneCmd.Flags().DurationVar(&journalFlags.olderThan, "older-than", 0, "override journal.retention (e.g. 24h)")
}

func pruneJournal(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}
	if cfg.Journal.Backend != "sqlite" && cfg.Journal.Backend != "postgres" {
		return cli.NewConfigError("journal.backend", "prune requires the sqlite or postgres backend")
	}

	ctx := cmd.Context()
	secretManager, secretFiles, err := secrets.FromConfig(&cfg.Security.Secrets, slog.Default())
	if err != nil {
		return cli.NewConfigError("security.secrets", err.Error())
	}
	if secretFiles != nil {
		defer secretFiles.Close()
	}
	resolved, err := secretManager.ResolveConfig(ctx, cfg)
	if err != nil {
		return cli.NewConfigError("", err.Error())
	}

	retention := resolved.Journal.Retention
	if journalFlags.olderThan > 0 {
		retention = journalFlags.olderThan
	}

	resolved.Journal.Enabled = true
	store, err := openJournal(ctx, &resolved.Journal)
	if err != nil {
		return cli.NewCommandError("journal prune", err)
	}
	defer store.Close()

	removed := journal.NewScheduler(store, "", retention).RunOnce(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d journal entries older than %s\n", removed, retention)
	return nil
}
