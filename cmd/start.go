package cmd

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"lexsync/core/archive"
	"lexsync/core/config"
	"lexsync/core/database"
	"lexsync/core/loader"
	"lexsync/core/logger"
	"lexsync/core/middleware/auth"
	"lexsync/core/middleware/rayid"

	"lexsync/feature/billing"
	"lexsync/feature/billing/models"
	"lexsync/feature/conflict"
	"lexsync/feature/platform"
	"lexsync/feature/syncqueue"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// @title LexSync API
// @version 1.0
// @description API for syncing legal billing entries to practice management platforms.
// @host localhost:8080
// @BasePath /api

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the sync server",
	Long:  `Starts the HTTP server, the background queue dispatcher and all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		// 1. Load Configuration
		cfg, err := config.LoadConfig(".")
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}

		// 2. Initialize Logger
		logg, err := logger.New(&cfg.Log)
		if err != nil {
			log.Fatalf("Failed to initialize logger: %v", err)
		}
		defer logg.Sync()
		zap.ReplaceGlobals(logg)

		// 3. Connect to Database
		// The queue is durable; without storage there is nothing to run.
		db, err := database.Connect(cfg.Database)
		if err != nil {
			logg.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := db.AutoMigrate(models.All()...); err != nil {
			logg.Fatal("Failed to migrate database schema", zap.Error(err))
		}

		// 4. Initialize Archive Storage (Optional)
		var archiveClient archive.Client
		if cfg.Archive.Enabled {
			archiveClient, err = archive.NewClient(cfg.Archive)
			if err != nil {
				logg.Fatal("Failed to create archive client", zap.Error(err))
			}
			logg.Info("History archival enabled", zap.String("bucket", cfg.Archive.Bucket))
		}

		// 5. Initialize Platform Registry
		registry := platform.NewRegistry(platform.DefaultFactories(), logg)
		for name, creds := range cfg.Platforms.Configured() {
			if err := registry.Configure(name, creds); err != nil {
				logg.Error("Platform configuration failed",
					zap.String("platform", name), zap.Error(err))
			}
		}

		// 6. Initialize Fiber App
		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// 7. Initialize Feature Loader
		mgr := loader.NewManager()

		// Register Features
		queueFeature := syncqueue.NewFeature(db, registry, archiveClient, cfg.Archive.Bucket, cfg.Sync, logg)
		mgr.Register(queueFeature)
		mgr.Register(billing.NewFeature(db, queueFeature.Service(), logg))
		mgr.Register(conflict.NewFeature(db, registry, logg))
		mgr.Register(platform.NewFeature(registry, logg))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Custom to use Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Auth (Protect API)
		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey}))

		// 8. Load Features
		api := app.Group("/api")
		if err := mgr.LoadAll(api); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 9. Start Background Dispatcher
		queueFeature.Service().Start()

		// 10. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", cfg.Server.Port))
			if err := app.Listen(":" + cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 11. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		queueFeature.Service().Stop()
		_ = app.Shutdown()
	},
}

func init() {
	RootCmd.AddCommand(startCmd)
}
