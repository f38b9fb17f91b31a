// Package cmd provides the nigel CLI commands.
//
// Commands:
//   - ask: answer a question from the doctrine corpus
//   - search: retrieve matching chunks without synthesis
//   - threshold: inspect or change the stored confidence threshold
//   - migrate: apply pending database migrations
//   - mcp: Model Context Protocol server for agent integration
//
// Signal handling and graceful shutdown are implemented via context
// cancellation where a command runs long enough to need it.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nigel",
	Short: "nigel - doctrine retrieval and synthesis",
	Long: `nigel answers questions from an indexed doctrine corpus.

Queries are embedded, matched against the corpus with vector or hybrid
search, and synthesized into an answer with cited sources. Questions the
corpus cannot support are refused rather than improvised.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the root command. Called from main.
func Execute() error {
	return rootCmd.Execute()
}
