package middleware

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"pagetally/internal/metrics"
)

// RequestMetrics records the latency of every request under its route
// pattern, never the raw path.
func RequestMetrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		metrics.RecordAPIRequest(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start))
		return err
	}
}
