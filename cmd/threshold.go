package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sparkforge/nigel/internal/config"
	"github.com/sparkforge/nigel/internal/database"
	"github.com/sparkforge/nigel/internal/doctrine"
	"github.com/sparkforge/nigel/internal/log"
)

var thresholdCmd = &cobra.Command{
	Use:   "threshold",
	Short: "Inspect or change the stored confidence threshold",
}

var thresholdGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the active confidence threshold",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(cmd.Context(), func(ctx context.Context, store *doctrine.Store) error {
			fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", store.ConfidenceThreshold(ctx))
			return nil
		})
	},
}

var thresholdSetCmd = &cobra.Command{
	Use:   "set [value]",
	Short: "Store a new confidence threshold in [0,1]",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("parsing threshold %q: %w", args[0], err)
		}

		return withStore(cmd.Context(), func(ctx context.Context, store *doctrine.Store) error {
			if err := store.SetConfidenceThreshold(ctx, value); err != nil {
				return fmt.Errorf("storing threshold: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Confidence threshold set to %.2f\n", value)
			return nil
		})
	},
}

func init() {
	thresholdCmd.AddCommand(thresholdGetCmd)
	thresholdCmd.AddCommand(thresholdSetCmd)
	rootCmd.AddCommand(thresholdCmd)
}

// withStore connects to the database and hands a doctrine store to fn.
// Threshold commands do not need the providers, so they skip full
// application setup.
func withStore(ctx context.Context, fn func(context.Context, *doctrine.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	pool, err := database.Open(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	store, err := doctrine.New(pool, log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel)}))
	if err != nil {
		return fmt.Errorf("creating doctrine store: %w", err)
	}

	return fn(ctx, store)
}
