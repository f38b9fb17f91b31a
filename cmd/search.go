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
)

var (
	searchConfidence float64
	searchHybrid     bool
	searchLimit      int
	searchFrameworks []string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Retrieve matching doctrine chunks without synthesis",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().Float64Var(&searchConfidence, "confidence", 0, "confidence threshold in [0,1]; overrides the stored value")
	searchCmd.Flags().BoolVar(&searchHybrid, "hybrid", false, "fuse keyword and vector retrieval")
	searchCmd.Flags().IntVar(&searchLimit, "limit", doctrine.DefaultSearchLimit, "maximum results for hybrid retrieval")
	searchCmd.Flags().StringSliceVar(&searchFrameworks, "framework", nil, "restrict results to chunks tagged with any of these frameworks")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	query := strings.Join(args, " ")

	var results []doctrine.SearchResult
	if searchHybrid {
		results, err = a.Engine.HybridRetrieve(ctx, query, searchLimit, 0, 0)
	} else {
		var confidence *float64
		if cmd.Flags().Changed("confidence") {
			confidence = &searchConfidence
		}
		results, err = a.Engine.RetrieveFiltered(ctx, query, confidence, searchFrameworks)
	}
	if err != nil {
		return fmt.Errorf("searching doctrine: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), formatSearchResults(results))
	return nil
}

// formatSearchResults renders ranked chunks with similarity and
// framework tags. Content is truncated to keep terminal output usable.
func formatSearchResults(results []doctrine.SearchResult) string {
	if len(results) == 0 {
		return "No doctrine matched the query.\n"
	}

	var b strings.Builder
	for i, r := range results {
		b.WriteString(fmt.Sprintf("%d. [%s] (%.2f)", i+1, r.Chunk.Section, r.Similarity))
		if len(r.Chunk.FrameworkTags) > 0 {
			b.WriteString(" " + strings.Join(r.Chunk.FrameworkTags, ", "))
		}
		b.WriteString("\n")
		b.WriteString("   " + truncateContent(r.Chunk.Content, 200) + "\n")
	}
	return b.String()
}

func truncateContent(s string, limit int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
