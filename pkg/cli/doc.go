/*
Package cli provides helpers shared by the shuttle commands.

Output Formatting:

Commands that print structured results accept --output text|json|yaml:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, info); err != nil {
		return err
	}

Signal Handling:

The serve command derives its root context from the process signals. The
first SIGINT or SIGTERM cancels the context and starts a graceful shutdown;
a second one exits immediately:

	ctx, stop := cli.SignalContext(context.Background(), logger)
	defer stop()

Exit Codes:

ExitCode maps command errors to process exit codes so scripts can tell a
bad configuration apart from a runtime failure.
*/
package cli
