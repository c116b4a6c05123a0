package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/igwatch/igbot/internal/store"
)

// newStatsCmd creates the 'stats' subcommand.
func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Prints report counts by pipeline stage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			st, err := store.New(cmd.Context(), cfg.DB, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			stats, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Total reports:         %d\n", stats.TotalReports)
			fmt.Printf("Passed keyword filter: %d\n", stats.PassedKeywordFilter)
			fmt.Printf("Passed LLM filter:     %d\n", stats.PassedLLMFilter)
			fmt.Printf("Posted:                %d\n", stats.Posted)
			fmt.Printf("Pending posts:         %d\n", stats.PendingPosts)
			return nil
		},
	}
}
