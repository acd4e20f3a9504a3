package billing

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"lexsync/core/logger"
	"lexsync/feature/billing/models"
)

// Handler handles HTTP requests for billing entries.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	// Force import for Swagger
	var _ = models.BillingEntry{}
	return &Handler{service: service}
}

// RegisterRoutes registers the billing entry routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/entries")
	group.Post("/", h.HandleCreate)
	group.Get("/:id", h.HandleGet)
	group.Put("/:id", h.HandleUpdate)
	group.Delete("/:id", h.HandleDelete)
	group.Get("/:id/status", h.HandleSyncStatus)
}

type createRequest struct {
	Entry     EntryInput `json:"entry"`
	Platforms []string   `json:"platforms"`
	AutoSync  bool       `json:"auto_sync"`
}

type updateRequest struct {
	Updates   EntryUpdate `json:"updates"`
	Platforms []string    `json:"platforms"`
}

type deleteRequest struct {
	Platforms []string `json:"platforms"`
}

// HandleCreate creates a billing entry.
// @Summary Create Billing Entry
// @Description Persists a new billing entry and, with auto_sync set, enqueues a create for each target platform.
// @Tags entries
// @Accept json
// @Produce json
// @Param request body createRequest true "Entry payload"
// @Success 201 {object} models.BillingEntry "Created Entry"
// @Failure 400 {object} map[string]string "Validation Error"
// @Failure 500 {object} map[string]string "Internal Server Error"
// @Router /entries [post]
func (h *Handler) HandleCreate(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	entry, err := h.service.CreateEntry(c.Context(), req.Entry, req.Platforms, req.AutoSync)
	if err != nil {
		l.Warn("Entry creation rejected", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	l.Info("Entry created",
		zap.String("entry", entry.ID),
		zap.Bool("auto_sync", req.AutoSync),
		zap.Strings("platforms", req.Platforms))
	return c.Status(fiber.StatusCreated).JSON(entry)
}

// HandleGet returns one billing entry.
// @Summary Get Billing Entry
// @Tags entries
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} models.BillingEntry "Entry"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /entries/{id} [get]
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	entry, err := h.service.GetEntry(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entry not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(entry)
}

// HandleUpdate applies a partial update and re-enqueues sync work.
// @Summary Update Billing Entry
// @Description Applies a partial update, resets the entry to pending and enqueues an update per target platform.
// @Tags entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param request body updateRequest true "Update payload"
// @Success 200 {object} models.BillingEntry "Updated Entry"
// @Failure 400 {object} map[string]string "Validation Error"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /entries/{id} [put]
func (h *Handler) HandleUpdate(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req updateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	entry, err := h.service.UpdateEntry(c.Context(), c.Params("id"), req.Updates, req.Platforms)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entry not found"})
		}
		l.Warn("Entry update rejected", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(entry)
}

// HandleDelete enqueues remote deletes for the entry.
// @Summary Delete Remote Copies
// @Description Enqueues a remote delete per platform. The local entry is never deleted.
// @Tags entries
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param request body deleteRequest false "Target platforms"
// @Success 202 {object} models.BillingEntry "Entry"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /entries/{id} [delete]
func (h *Handler) HandleDelete(c *fiber.Ctx) error {
	var req deleteRequest
	_ = c.BodyParser(&req)

	entry, err := h.service.DeleteEntry(c.Context(), c.Params("id"), req.Platforms)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entry not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.Status(fiber.StatusAccepted).JSON(entry)
}

// HandleSyncStatus returns the entry's full sync view.
// @Summary Get Entry Sync Status
// @Description Returns the entry together with its queue snapshot and attempt history.
// @Tags entries
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} syncqueue.EntryStatus "Sync Status"
// @Failure 404 {object} map[string]string "Not Found"
// @Router /entries/{id}/status [get]
func (h *Handler) HandleSyncStatus(c *fiber.Ctx) error {
	status, err := h.service.GetSyncStatus(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "entry not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(status)
}
