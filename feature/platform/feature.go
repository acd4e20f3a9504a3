package platform

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Feature implements the loader.Feature interface.
type Feature struct {
	registry     *Registry
	orchestrator *Orchestrator
	handler      *Handler
}

// NewFeature creates a new platform management feature over an existing
// registry.
func NewFeature(registry *Registry, logger *zap.Logger) *Feature {
	orchestrator := NewOrchestrator(registry, logger)
	h := NewHandler(registry, orchestrator, logger)
	return &Feature{registry: registry, orchestrator: orchestrator, handler: h}
}

// Name returns the name of the feature.
func (f *Feature) Name() string {
	return "platform"
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
