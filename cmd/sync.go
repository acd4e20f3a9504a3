package cmd

import (
	"context"
	"log"

	"lexsync/core/config"
	"lexsync/core/database"
	"lexsync/core/logger"
	"lexsync/feature/billing/models"
	"lexsync/feature/platform"
	"lexsync/feature/syncqueue"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// syncCmd drains the queue once and exits. Useful for cron-style setups
// running without the background dispatcher.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the sync queue once",
	Long:  `Processes one bounded batch of due queue items against their platforms and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(models.All()...); err != nil {
			return err
		}

		registry := platform.NewRegistry(platform.DefaultFactories(), logg)
		for name, creds := range cfg.Platforms.Configured() {
			if err := registry.Configure(name, creds); err != nil {
				logg.Error("Platform configuration failed",
					zap.String("platform", name), zap.Error(err))
			}
		}

		svc := syncqueue.NewService(db, registry, nil, "", cfg.Sync, logg)
		report, err := svc.ProcessQueue(context.Background())
		if err != nil {
			return err
		}

		logg.Info("Drain finished",
			zap.Int("picked", report.Picked),
			zap.Int("completed", report.Completed),
			zap.Int("rescheduled", report.Rescheduled),
			zap.Int("failed", report.Failed))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)
}
