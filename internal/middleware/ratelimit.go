package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// callerKey buckets authenticated requests by caller and the rest by IP
func callerKey(c *fiber.Ctx) string {
	if userID := GetUserID(c); userID != "" {
		return "user:" + userID
	}
	return "ip:" + c.IP()
}

func limitReached(c *fiber.Ctx) error {
	return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
		"success": false,
		"message": "Too many requests, please try again later",
	})
}

// RateLimiter allows max requests per key within each expiration window.
// A non-positive max disables limiting.
func RateLimiter(max int, expiration time.Duration) fiber.Handler {
	if max <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return limiter.New(limiter.Config{
		Max:          max,
		Expiration:   expiration,
		KeyGenerator: callerKey,
		LimitReached: limitReached,
	})
}

// SendRateLimiter limits message sends per caller per minute
func SendRateLimiter(perMinute int) fiber.Handler {
	return RateLimiter(perMinute, time.Minute)
}

// RelaxedRateLimiter for read-only endpoints
func RelaxedRateLimiter() fiber.Handler {
	return RateLimiter(100, time.Minute)
}
