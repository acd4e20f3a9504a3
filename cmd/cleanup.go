package cmd

import (
	"context"
	"log"

	"lexsync/core/archive"
	"lexsync/core/config"
	"lexsync/core/database"
	"lexsync/core/logger"
	"lexsync/feature/billing/models"
	"lexsync/feature/platform"
	"lexsync/feature/syncqueue"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var cleanupDays int

// cleanupCmd purges aged sync data once and exits.
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge aged sync history and queue items",
	Long: `Deletes terminal queue items and sync history older than the given number
of days. When archival is enabled the purged history is written to object
storage first.`,
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

		var archiveClient archive.Client
		if cfg.Archive.Enabled {
			archiveClient, err = archive.NewClient(cfg.Archive)
			if err != nil {
				return err
			}
		}

		registry := platform.NewRegistry(platform.DefaultFactories(), logg)
		svc := syncqueue.NewService(db, registry, archiveClient, cfg.Archive.Bucket, cfg.Sync, logg)

		report, err := svc.Cleanup(context.Background(), cleanupDays)
		if err != nil {
			return err
		}

		logg.Info("Cleanup finished",
			zap.Int64("history_purged", report.HistoryPurged),
			zap.Int64("queue_purged", report.QueuePurged),
			zap.String("archive_object", report.ArchiveObject))
		return nil
	},
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 0, "age threshold in days (0 uses the configured retention)")
	RootCmd.AddCommand(cleanupCmd)
}
