package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/webfolio/mail-infra/internal/config"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one synchronization pass and exit",
	Long:  "Pulls recent provider messages into the store; intended for cron. Overlapping runs are safe.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		ctx := context.Background()

		deps, err := buildDeps(ctx, cfg)
		if err != nil {
			return err
		}
		defer deps.close()

		threadsSynced, err := deps.syncService.RunSync(ctx)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}

		fmt.Printf("synced %d threads\n", threadsSynced)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
