package middleware

import (
	"strings"

	"unisell/server/internal/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	localUserID = "userID"
	localRole   = "role"
)

// tokenFrom reads the session token from the cookie, falling back to a
// bearer Authorization header.
func tokenFrom(c *fiber.Ctx) string {
	if token := c.Cookies("token"); token != "" {
		return token
	}
	auth := c.Get(fiber.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

// AuthMiddleware validates the session token and stores the caller in context
func AuthMiddleware(c *fiber.Ctx) error {
	tokenString := tokenFrom(c)
	if tokenString == "" {
		return unauthorized(c, "Unauthorized - No token provided")
	}

	claims, err := utils.ValidateToken(tokenString)
	if err != nil {
		return unauthorized(c, "Unauthorized - Invalid token")
	}
	if !utils.IsObjectID(claims.UserID) {
		return unauthorized(c, "Unauthorized - Invalid session subject")
	}

	c.Locals(localUserID, strings.ToLower(claims.UserID))
	c.Locals(localRole, claims.Role)

	return c.Next()
}

// GetUserID gets user ID from context
func GetUserID(c *fiber.Ctx) string {
	userID, ok := c.Locals(localUserID).(string)
	if !ok {
		return ""
	}
	return userID
}

// GetRole gets the caller's marketplace role from context
func GetRole(c *fiber.Ctx) string {
	role, ok := c.Locals(localRole).(string)
	if !ok {
		return ""
	}
	return role
}
