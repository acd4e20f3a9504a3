package conflict

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexsync/core/logger"
	"lexsync/feature/billing/models"
)

// Handler handles HTTP requests for conflicts.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the conflict routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/conflicts")
	group.Get("/", h.HandleListPending)
	group.Get("/stats", h.HandleStats)
	group.Post("/check/:entryId", h.HandleCheck)
	group.Post("/entry/:entryId/resolve", h.HandleResolveEntry)
	group.Post("/:id/resolve", h.HandleResolve)
	group.Post("/:id/manual", h.HandleManualResolve)
	group.Post("/:id/ignore", h.HandleIgnore)
}

// HandleListPending lists pending conflicts.
// @Summary List Pending Conflicts
// @Description Lists pending conflicts, newest first, optionally filtered by entry, platform or type.
// @Tags conflicts
// @Produce json
// @Param entry query string false "Billing entry ID"
// @Param platform query string false "Platform"
// @Param type query string false "Conflict type"
// @Success 200 {array} models.Conflict "Pending Conflicts"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /conflicts [get]
func (h *Handler) HandleListPending(c *fiber.Ctx) error {
	conflicts, err := h.service.ListPending(c.Context(), Filter{
		EntryID:  c.Query("entry"),
		Platform: c.Query("platform"),
		Type:     models.ConflictType(c.Query("type")),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(conflicts)
}

// HandleStats returns conflict aggregates.
// @Summary Conflict Stats
// @Description Aggregates conflicts detected within the last N days by status, type and strategy.
// @Tags conflicts
// @Produce json
// @Param days query integer false "Timeframe in days (default 30)"
// @Success 200 {object} Stats "Conflict Stats"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /conflicts/stats [get]
func (h *Handler) HandleStats(c *fiber.Ctx) error {
	days, _ := strconv.Atoi(c.Query("days"))
	if days <= 0 {
		days = 30
	}
	stats, err := h.service.GetStats(c.Context(), time.Duration(days)*24*time.Hour)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(stats)
}

// HandleCheck runs conflict detection for one entry.
// @Summary Check Entry For Conflicts
// @Description Fetches the entry's remote copy and runs field comparison and duplicate detection against it.
// @Tags conflicts
// @Produce json
// @Param entryId path string true "Billing entry ID"
// @Param platform query string true "Platform to compare against"
// @Success 200 {array} models.Conflict "Detected Conflicts"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /conflicts/check/{entryId} [post]
func (h *Handler) HandleCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	conflicts, err := h.service.CheckEntry(c.Context(), c.Params("entryId"), c.Query("platform"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entry not found"})
		}
		l.Error("Conflict check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(conflicts)
}

// HandleResolveEntry applies the rule table to every pending conflict of an
// entry.
// @Summary Resolve Entry Conflicts
// @Description Applies the ranked rule table to every pending conflict of the entry and returns the merged data plus whatever still needs a human.
// @Tags conflicts
// @Produce json
// @Param entryId path string true "Billing entry ID"
// @Success 200 {object} EntryResolution "Resolution Result"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /conflicts/entry/{entryId}/resolve [post]
func (h *Handler) HandleResolveEntry(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	result, err := h.service.Resolver().ResolveEntryConflicts(c.Context(), c.Params("entryId"))
	if err != nil {
		l.Error("Entry conflict resolution failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(result)
}

// HandleResolve previews the rule outcome for a single conflict.
// @Summary Resolve Single Conflict
// @Description Applies the governing rule to one pending conflict without closing it; use the entry-level resolve or manual endpoints to persist an outcome.
// @Tags conflicts
// @Produce json
// @Param id path string true "Conflict ID"
// @Success 200 {object} Resolution "Resolution"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /conflicts/{id}/resolve [post]
func (h *Handler) HandleResolve(c *fiber.Ctx) error {
	var conflict models.Conflict
	if err := h.service.db.WithContext(c.Context()).First(&conflict, "id = ?", c.Params("id")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "conflict not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(h.service.Resolver().Resolve(&conflict))
}

type manualResolveRequest struct {
	Value      any    `json:"value"`
	ResolvedBy string `json:"resolved_by"`
}

// HandleManualResolve force-resolves one conflict.
// @Summary Manually Resolve Conflict
// @Description Closes a pending conflict with a human-chosen value, recording the resolver identity.
// @Tags conflicts
// @Accept json
// @Produce json
// @Param id path string true "Conflict ID"
// @Param request body manualResolveRequest true "Chosen value and resolver"
// @Success 200 {object} models.Conflict "Resolved Conflict"
// @Failure 400 {object} map[string]string "Invalid Request"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 409 {object} map[string]string "Already Terminal"
// @Router /conflicts/{id}/manual [post]
func (h *Handler) HandleManualResolve(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req manualResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.ResolvedBy == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "resolved_by is required"})
	}

	conflict, err := h.service.Resolver().ManuallyResolve(c.Context(), c.Params("id"), req.Value, req.ResolvedBy)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "conflict not found"})
		}
		l.Warn("Manual resolution refused", zap.Error(err))
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(conflict)
}

type ignoreRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

// HandleIgnore dismisses one conflict.
// @Summary Ignore Conflict
// @Description Closes a pending conflict without resolving it.
// @Tags conflicts
// @Accept json
// @Produce json
// @Param id path string true "Conflict ID"
// @Param request body ignoreRequest true "Resolver identity"
// @Success 200 {object} models.Conflict "Ignored Conflict"
// @Failure 404 {object} map[string]string "Not Found"
// @Failure 409 {object} map[string]string "Already Terminal"
// @Router /conflicts/{id}/ignore [post]
func (h *Handler) HandleIgnore(c *fiber.Ctx) error {
	var req ignoreRequest
	_ = c.BodyParser(&req)
	if req.ResolvedBy == "" {
		req.ResolvedBy = "api"
	}

	conflict, err := h.service.Resolver().Ignore(c.Context(), c.Params("id"), req.ResolvedBy)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "conflict not found"})
		}
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(conflict)
}
