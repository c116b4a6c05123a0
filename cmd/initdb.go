package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/igwatch/igbot/internal/store"
)

// newInitDBCmd creates the 'init-db' subcommand.
func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Creates the database schema if it does not exist",
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

			if err := st.InitSchema(cmd.Context()); err != nil {
				return err
			}
			logger.Info("database schema ready")
			return nil
		},
	}
}
