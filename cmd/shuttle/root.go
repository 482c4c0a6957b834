package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/shuttle/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "shuttle",
	Short: "Shuttle - request-scoped HTTP and Server-Sent Events server",
	Long: `Shuttle serves HTTP endpoints whose handlers share a per-request scope and
streams Server-Sent Events with heartbeats and Last-Event-ID replay.

Every request gets a time-ordered identifier (req_<uuidv7>) that is echoed in
the X-Request-ID header, added to every log line and attached to trace spans.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a status derived from the
// returned error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (defaults only when empty)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
