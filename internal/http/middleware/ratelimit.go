package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	cartridgemiddleware "github.com/karloscodes/cartridge/middleware"

	"pagetally/internal/config"
)

// BeaconRateLimiter caps beacons per client IP. It is only active in
// production; elsewhere it would get in the way of tests and local load
// generation.
func BeaconRateLimiter(cfg *config.Config) fiber.Handler {
	limiter := cartridgemiddleware.RateLimiter(
		cartridgemiddleware.WithMax(cfg.BeaconsPerMinute),
		cartridgemiddleware.WithDuration(time.Minute),
	)
	return func(c *fiber.Ctx) error {
		if cfg.IsProduction() {
			return limiter(c)
		}
		return c.Next()
	}
}
