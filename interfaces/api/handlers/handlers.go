package handlers

import (
	"github.com/RCXD/Bros-back/domain/services"
)

// Services contains all the services needed for handlers
type Services struct {
	ImageService   services.ImageService
	StorageService services.StorageService
	JWTSecret      string
}

// Handlers contains all HTTP handlers
type Handlers struct {
	ImageHandler   *ImageHandler
	StorageHandler *StorageHandler
	JWTSecret      string
}

func NewHandlers(services *Services) *Handlers {
	return &Handlers{
		ImageHandler:   NewImageHandler(services.ImageService),
		StorageHandler: NewStorageHandler(services.StorageService),
		JWTSecret:      services.JWTSecret,
	}
}
