package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/RCXD/Bros-back/application/serviceimpl"
	"github.com/RCXD/Bros-back/domain/services"
	"github.com/RCXD/Bros-back/pkg/logger"
	"github.com/RCXD/Bros-back/pkg/utils"
)

type StorageHandler struct {
	storageService services.StorageService
}

func NewStorageHandler(storageService services.StorageService) *StorageHandler {
	return &StorageHandler{storageService: storageService}
}

func (h *StorageHandler) GetStorageStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if h.storageService == nil {
		logger.WarnContext(ctx, "Storage service not available")
		return utils.BadRequestResponse(c, "Storage service is not available")
	}

	stats, err := h.storageService.GetStorageStats(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to get storage stats", "error", err)
		return utils.InternalServerErrorResponse(c)
	}

	return utils.SuccessResponse(c, fiber.Map{
		"raw":       stats,
		"formatted": serviceimpl.FormatStorageStats(stats),
	})
}

// TriggerCleanup runs cleanup in the background, or inline with ?wait=true.
func (h *StorageHandler) TriggerCleanup(c *fiber.Ctx) error {
	ctx := c.UserContext()

	if h.storageService == nil {
		logger.WarnContext(ctx, "Storage service not available")
		return utils.BadRequestResponse(c, "Storage service is not available")
	}

	logger.InfoContext(ctx, "Manual storage cleanup triggered")

	if c.QueryBool("wait") {
		report := h.storageService.RunCleanup(ctx)
		return utils.SuccessResponse(c, report)
	}

	// the request context ends with the response
	bg := logger.ContextWithRequestID(context.Background(), logger.GetRequestID(ctx))
	go h.storageService.RunCleanup(bg)

	return utils.AcceptedResponse(c, fiber.Map{
		"message": "Cleanup started in background",
	})
}
