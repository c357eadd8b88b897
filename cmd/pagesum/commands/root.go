package commands

import (
	"time"

	"github.com/spf13/cobra"
)

// DefaultGatewayURL is the websocket endpoint of a local pagesumd.
const DefaultGatewayURL = "ws://127.0.0.1:8765/ws"

var (
	// gatewayURL is the websocket endpoint of the daemon.
	gatewayURL string

	// outputFormat controls output format (text, json).
	outputFormat string

	// callTimeout bounds each request, summaries included.
	callTimeout time.Duration
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "pagesum",
	Short: "Summarize web pages through a pagesumd daemon",
	Long: `pagesum talks to a running pagesumd over its websocket gateway.

Use it to summarize pages, browse and prune the summary history, and watch
summaries stream in as they are generated.`,
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&gatewayURL, "gateway", DefaultGatewayURL,
		"Websocket URL of the pagesumd gateway",
	)
	rootCmd.PersistentFlags().StringVar(
		&outputFormat, "format", "text",
		"Output format: text, json",
	)
	rootCmd.PersistentFlags().DurationVar(
		&callTimeout, "timeout", 5*time.Minute,
		"Timeout for a single request",
	)

	rootCmd.AddCommand(summarizeCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(releaseCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(versionCmd)
}
