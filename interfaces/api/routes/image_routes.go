package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/RCXD/Bros-back/interfaces/api/handlers"
	"github.com/RCXD/Bros-back/interfaces/api/middleware"
)

func SetupImageRoutes(api fiber.Router, h *handlers.Handlers) {
	protected := middleware.Protected(h.JWTSecret)

	images := api.Group("/images", protected)
	images.Post("/", h.ImageHandler.UploadImage)
	images.Post("/profile", h.ImageHandler.UploadProfileImage)
	images.Get("/my", h.ImageHandler.GetMyImages)
	images.Get("/:id", h.ImageHandler.GetImage)
	images.Get("/:id/raw", h.ImageHandler.GetImageRaw)
	images.Delete("/:id", h.ImageHandler.DeleteImage)

	// Entity images are shown alongside public posts
	entities := api.Group("/entities")
	entities.Get("/:entityId/images", h.ImageHandler.ListEntityImages)
	entities.Delete("/:entityId/images", protected, h.ImageHandler.DeleteEntityImages)

	api.Get("/users/:ownerId/profile-image", h.ImageHandler.GetProfileImage)
}
