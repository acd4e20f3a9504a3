package syncqueue

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexsync/core/archive"
	"lexsync/feature/platform"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	service *Service
	handler *Handler
}

// NewFeature creates a new sync queue feature.
func NewFeature(db *gorm.DB, registry *platform.Registry, archiveClient archive.Client, archiveBucket string, cfg Config, logger *zap.Logger) *Feature {
	svc := NewService(db, registry, archiveClient, archiveBucket, cfg, logger)
	h := NewHandler(svc)
	return &Feature{service: svc, handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "syncqueue"
}

// IsEnabled checks if the feature is enabled.
func (f *Feature) IsEnabled() bool {
	return true
}

// Load registers the feature's routes.
func (f *Feature) Load(app fiber.Router) error {
	f.handler.RegisterRoutes(app)
	return nil
}

// Service exposes the queue service for wiring into other features and the
// process lifecycle.
func (f *Feature) Service() *Service {
	return f.service
}
