package internal

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	v1 "pagetally/api/v1"
	"pagetally/internal/config"
	"pagetally/internal/http"
	"pagetally/internal/http/middleware"
)

// beaconCORSConfig lets any page post beacons; the stats API is read with
// a bearer token and may be called from dashboards on other hosts.
var beaconCORSConfig = cors.Config{
	AllowOrigins: "*",
	AllowMethods: "POST,OPTIONS",
	AllowHeaders: "Origin, Content-Type, Accept, User-Agent",
}

var apiCORSConfig = cors.Config{
	AllowOrigins: "*",
	AllowMethods: "GET,OPTIONS",
	AllowHeaders: "Origin, Accept, Authorization",
}

// MountRoutes registers every endpoint on app.
func MountRoutes(app *fiber.App, cfg *config.Config, h *v1.Handler) {
	app.Use(middleware.RequestMetrics())

	// Health and metrics
	app.Get("/_health", http.HealthHandler(h.DB, cfg.DataDirectory, h.Logger))
	app.Head("/_health", http.HealthHandler(h.DB, cfg.DataDirectory, h.Logger))
	app.Get("/metrics", http.MetricsHandler())

	// Public beacon intake
	beacon := app.Group("/x/api/v1", cors.New(beaconCORSConfig))
	beacon.Post("/beacon", middleware.BeaconRateLimiter(cfg), h.BeaconHandler)
	beacon.Options("/beacon", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Stats API, scoped by bearer token
	api := app.Group("/api/v1", cors.New(apiCORSConfig))
	api.Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	api.Use(h.RequireViewer)
	api.Get("/origins", h.OriginsHandler)
	api.Get("/available", h.AvailableHandler)
	api.Get("/stats", h.StatsHandler)
	api.Get("/annotations", h.AnnotationsHandler)
}
