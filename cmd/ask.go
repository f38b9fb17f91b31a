package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sparkforge/nigel/internal/app"
	"github.com/sparkforge/nigel/internal/config"
	"github.com/sparkforge/nigel/internal/doctrine"
	"github.com/sparkforge/nigel/internal/rag"
)

var (
	askConfidence float64
	askHybrid     bool
	askSources    bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the doctrine corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().Float64Var(&askConfidence, "confidence", 0, "confidence threshold in [0,1]; overrides the stored value")
	askCmd.Flags().BoolVar(&askHybrid, "hybrid", false, "fuse keyword and vector retrieval")
	askCmd.Flags().BoolVar(&askSources, "sources", false, "list cited sources after the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	opts := rag.AskOptions{Hybrid: askHybrid}
	if cmd.Flags().Changed("confidence") {
		opts.Confidence = &askConfidence
	}

	question := strings.Join(args, " ")
	resp, err := a.Engine.Ask(ctx, question, opts)
	if err != nil {
		return fmt.Errorf("answering question: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), resp.Answer)
	if askSources && len(resp.Sources) > 0 {
		fmt.Fprint(cmd.OutOrStdout(), formatSources(resp.Sources))
	}

	return nil
}

// formatSources renders cited sources one per line, most similar first.
func formatSources(sources []doctrine.Source) string {
	var b strings.Builder
	b.WriteString("\nSources:\n")
	for _, s := range sources {
		b.WriteString(fmt.Sprintf("  %s", s.DocumentName))
		if s.Section != "" {
			b.WriteString(fmt.Sprintf(" / %s", s.Section))
		}
		b.WriteString(fmt.Sprintf(" (%.2f)\n", s.Similarity))
	}
	return b.String()
}
