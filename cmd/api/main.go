package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/RCXD/Bros-back/interfaces/api/handlers"
	"github.com/RCXD/Bros-back/interfaces/api/middleware"
	"github.com/RCXD/Bros-back/interfaces/api/routes"
	"github.com/RCXD/Bros-back/pkg/di"
	"github.com/RCXD/Bros-back/pkg/logger"
)

// multipartOverhead is the slack on top of the image size for form fields and boundaries.
const multipartOverhead = 1 << 20

func main() {
	container := di.NewContainer()

	if err := container.Initialize(); err != nil {
		// logger may not be up yet
		panic("Failed to initialize container: " + err.Error())
	}

	cfg := container.GetConfig()

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		AppName:      cfg.App.Name,
		BodyLimit:    int(cfg.Image.MaxUploadSize) + multipartOverhead,
	})

	// RequestID must run before the logger
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.CorsMiddleware(cfg.App.CorsOrigins))

	// Local uploads are served by the API itself, S3 serves its own URLs
	if cfg.Storage.Type != "s3" {
		app.Static("/files", cfg.Storage.BasePath, fiber.Static{
			MaxAge: int((24 * time.Hour).Seconds()),
		})
	}

	h := handlers.NewHandlers(container.GetHandlerServices())
	routes.SetupRoutes(app, h)

	setupGracefulShutdown(app, container)

	port := cfg.App.Port
	logger.Info("Server starting",
		"port", port,
		"env", cfg.App.Env,
		"app", cfg.App.Name,
	)
	logger.Info("Endpoints available",
		"health", "http://localhost:"+port+"/health",
		"api", "http://localhost:"+port+"/api/v1",
	)

	if err := app.Listen(":" + port); err != nil {
		logger.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}

// setupGracefulShutdown stops accepting requests first, then drains the
// compression queue and closes connections.
func setupGracefulShutdown(app *fiber.App, container *di.Container) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		logger.Info("Gracefully shutting down...")

		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Warn("HTTP server shutdown incomplete", "error", err)
		}

		if err := container.Cleanup(); err != nil {
			logger.Error("Error during cleanup", "error", err)
		}

		logger.Info("Shutdown complete")
		os.Exit(0)
	}()
}
