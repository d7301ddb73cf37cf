package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Health reports whether the message backend answers
func Health(driver string, ping func(context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"status":  "degraded",
				"store":   driver,
			})
		}

		return c.JSON(fiber.Map{
			"success": true,
			"status":  "ok",
			"store":   driver,
		})
	}
}
