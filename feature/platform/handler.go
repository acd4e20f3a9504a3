package platform

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"lexsync/core/logger"
)

// Handler handles HTTP requests for platform management.
type Handler struct {
	registry     *Registry
	orchestrator *Orchestrator
	logger       *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(registry *Registry, orchestrator *Orchestrator, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers the platform routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/platforms")
	group.Get("/", h.HandleAvailable)
	group.Get("/configured", h.HandleConfigured)
	group.Get("/search/clients", h.HandleSearchClients)
	group.Get("/search/matters", h.HandleSearchMatters)
	group.Post("/:platform/configure", h.HandleConfigure)
	group.Delete("/:platform", h.HandleRemove)
	group.Get("/:platform/configuration", h.HandleConfiguration)
	group.Post("/:platform/validate", h.HandleValidate)
}

// HandleAvailable lists every known platform.
// @Summary List Available Platforms
// @Tags platforms
// @Produce json
// @Success 200 {array} string "Platform Names"
// @Router /platforms [get]
func (h *Handler) HandleAvailable(c *fiber.Ctx) error {
	return c.JSON(h.registry.GetAvailablePlatforms())
}

// HandleConfigured lists platforms ready for dispatch.
// @Summary List Configured Platforms
// @Tags platforms
// @Produce json
// @Success 200 {array} string "Platform Names"
// @Router /platforms/configured [get]
func (h *Handler) HandleConfigured(c *fiber.Ctx) error {
	return c.JSON(h.registry.GetConfiguredPlatforms())
}

// HandleConfigure binds credentials to a platform adapter.
// @Summary Configure Platform
// @Description Instantiates (or rebinds) the platform's adapter with the given credentials.
// @Tags platforms
// @Accept json
// @Produce json
// @Param platform path string true "Platform"
// @Param request body Credentials true "Credentials"
// @Success 200 {object} map[string]string "Configured"
// @Failure 400 {object} map[string]string "Invalid Request"
// @Failure 404 {object} map[string]string "Unknown Platform"
// @Router /platforms/{platform}/configure [post]
func (h *Handler) HandleConfigure(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	platformName := c.Params("platform")

	var creds Credentials
	if err := c.BodyParser(&creds); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.registry.Configure(platformName, creds); err != nil {
		l.Warn("Platform configuration failed",
			zap.String("platform", platformName), zap.Error(err))
		return c.Status(statusForCode(CodeOf(err))).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "configured", "platform": platformName})
}

// HandleRemove forgets a platform's credentials.
// @Summary Remove Platform Configuration
// @Tags platforms
// @Produce json
// @Param platform path string true "Platform"
// @Success 200 {object} map[string]string "Removed"
// @Failure 404 {object} map[string]string "Unknown Platform"
// @Router /platforms/{platform} [delete]
func (h *Handler) HandleRemove(c *fiber.Ctx) error {
	platformName := c.Params("platform")
	if err := h.registry.RemoveConfiguration(platformName); err != nil {
		return c.Status(statusForCode(CodeOf(err))).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "removed", "platform": platformName})
}

// HandleConfiguration returns the stored configuration, credentials stripped.
// @Summary Get Platform Configuration
// @Description Returns the platform's configuration with every credential field replaced by a redaction marker.
// @Tags platforms
// @Produce json
// @Param platform path string true "Platform"
// @Success 200 {object} map[string]string "Configuration"
// @Failure 404 {object} map[string]string "Unknown Or Unconfigured Platform"
// @Router /platforms/{platform}/configuration [get]
func (h *Handler) HandleConfiguration(c *fiber.Ctx) error {
	cfg, err := h.registry.GetConfiguration(c.Params("platform"))
	if err != nil {
		return c.Status(statusForCode(CodeOf(err))).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(cfg)
}

// HandleValidate checks the platform connection end to end.
// @Summary Validate Platform Connection
// @Tags platforms
// @Produce json
// @Param platform path string true "Platform"
// @Success 200 {object} map[string]string "Connection OK"
// @Failure 404 {object} map[string]string "Unknown Or Unconfigured Platform"
// @Failure 502 {object} map[string]string "Connection Failed"
// @Router /platforms/{platform}/validate [post]
func (h *Handler) HandleValidate(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	platformName := c.Params("platform")

	adapter, err := h.registry.GetAdapter(platformName)
	if err != nil {
		return c.Status(statusForCode(CodeOf(err))).JSON(fiber.Map{"error": err.Error()})
	}
	if err := adapter.ValidateConnection(c.Context()); err != nil {
		l.Warn("Platform validation failed",
			zap.String("platform", platformName), zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"status": "ok", "platform": platformName})
}

// HandleSearchClients searches clients across every configured platform.
// @Summary Search Clients Across Platforms
// @Tags platforms
// @Produce json
// @Param q query string true "Search query"
// @Success 200 {object} map[string][]Client "Clients Per Platform"
// @Router /platforms/search/clients [get]
func (h *Handler) HandleSearchClients(c *fiber.Ctx) error {
	return c.JSON(h.orchestrator.SearchClientsAcrossPlatforms(c.Context(), c.Query("q")))
}

// HandleSearchMatters searches matters across every configured platform.
// @Summary Search Matters Across Platforms
// @Tags platforms
// @Produce json
// @Param q query string true "Search query"
// @Param client query string false "Client ID scope"
// @Success 200 {object} map[string][]Matter "Matters Per Platform"
// @Router /platforms/search/matters [get]
func (h *Handler) HandleSearchMatters(c *fiber.Ctx) error {
	return c.JSON(h.orchestrator.SearchMattersAcrossPlatforms(c.Context(), c.Query("q"), c.Query("client")))
}

// statusForCode maps registry error codes onto HTTP statuses.
func statusForCode(code Code) int {
	switch code {
	case CodePlatformNotFound:
		return fiber.StatusNotFound
	case CodePlatformNotConfigured, CodeNotConfigured:
		return fiber.StatusConflict
	case CodeValidation:
		return fiber.StatusBadRequest
	case CodeAuthFailed:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}
