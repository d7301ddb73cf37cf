package handlers

import (
	"unisell/server/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// GetConversations returns the caller's inbox, one row per counterpart
func (h *MessageHandler) GetConversations(c *fiber.Ctx) error {
	conversations, err := h.svc.ListConversations(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, "list conversations", err)
	}

	return c.JSON(fiber.Map{
		"success":       true,
		"conversations": conversations,
	})
}
