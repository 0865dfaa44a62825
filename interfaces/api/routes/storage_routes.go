package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/RCXD/Bros-back/interfaces/api/handlers"
	"github.com/RCXD/Bros-back/interfaces/api/middleware"
)

func SetupStorageRoutes(router fiber.Router, h *handlers.Handlers) {
	storage := router.Group("/storage")

	storage.Use(middleware.Protected(h.JWTSecret), middleware.AdminOnly())

	storage.Get("/stats", h.StorageHandler.GetStorageStats)
	storage.Post("/cleanup", h.StorageHandler.TriggerCleanup)
}
