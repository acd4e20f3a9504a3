package syncqueue

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"lexsync/core/logger"
)

// Handler handles HTTP requests for the sync queue.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/process", h.HandleProcess)
	group.Post("/cleanup", h.HandleCleanup)
	group.Get("/stats", h.HandleStats)
}

// HandleProcess triggers one queue drain.
// @Summary Drain Sync Queue
// @Description Processes one bounded batch of due queue items against their platforms. Only one drain runs at a time.
// @Tags sync
// @Accept json
// @Produce json
// @Success 200 {object} DrainReport "Drain Report"
// @Failure 409 {object} map[string]string "Drain Already Running"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/process [post]
func (h *Handler) HandleProcess(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Manual queue drain requested")

	report, err := h.service.ProcessQueue(c.Context())
	if err != nil {
		if errors.Is(err, ErrDrainInProgress) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("Queue drain failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleCleanup purges aged queue items and history.
// @Summary Cleanup Sync Data
// @Description Purges terminal queue items and sync history older than the given number of days, archiving the history first when archival is configured.
// @Tags sync
// @Accept json
// @Produce json
// @Param days query integer false "Age threshold in days"
// @Success 200 {object} CleanupReport "Cleanup Report"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/cleanup [post]
func (h *Handler) HandleCleanup(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	days, _ := strconv.Atoi(c.Query("days"))
	report, err := h.service.Cleanup(c.Context(), days)
	if err != nil {
		l.Error("Cleanup failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleStats returns queue counts by status.
// @Summary Sync Queue Stats
// @Description Returns the number of queue items per lifecycle status.
// @Tags sync
// @Accept json
// @Produce json
// @Success 200 {object} map[string]int64 "Queue Stats"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /sync/stats [get]
func (h *Handler) HandleStats(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	stats, err := h.service.Stats(c.Context())
	if err != nil {
		l.Error("Queue stats failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(stats)
}
