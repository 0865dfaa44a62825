package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/RCXD/Bros-back/interfaces/api/handlers"
)

func SetupRoutes(app *fiber.App, h *handlers.Handlers) {
	SetupHealthRoutes(app)

	api := app.Group("/api/v1")

	SetupImageRoutes(api, h)
	SetupStorageRoutes(api, h)
}
