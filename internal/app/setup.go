package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webfolio/mail-infra/internal/config"
	"github.com/webfolio/mail-infra/internal/store"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create database tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx := context.Background()

		pg, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pg.Close()

		fmt.Println("Running migrations...")
		if err := pg.Migrate(ctx); err != nil {
			return err
		}

		fmt.Println("Database setup complete")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
}
