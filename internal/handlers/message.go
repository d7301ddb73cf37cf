package handlers

import (
	"strconv"
	"time"

	"unisell/server/internal/messaging"
	"unisell/server/internal/middleware"
	"unisell/server/internal/models"
	"unisell/server/internal/store"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxPageLimit = 200

// MessageHandler serves the direct messaging endpoints
type MessageHandler struct {
	svc      *messaging.Service
	validate *validator.Validate
	log      *zap.Logger
}

func NewMessageHandler(svc *messaging.Service, log *zap.Logger) *MessageHandler {
	return &MessageHandler{svc: svc, validate: NewValidator(), log: log}
}

// SendMessage sends a direct message from the authenticated caller
func (h *MessageHandler) SendMessage(c *fiber.Ctx) error {
	var req models.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "Invalid request body")
	}

	if err := h.validate.Struct(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, validationMessage(err))
	}

	// The sender is always the session owner, never a body field.
	msg, err := h.svc.Send(c.UserContext(), middleware.GetUserID(c), req.ReceiverID, req.Content, req.ClientID)
	if err != nil {
		return respondError(c, h.log, "send", err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    msg,
	})
}

// parsePage reads the optional limit/before query parameters
func parsePage(c *fiber.Ctx) (store.Page, bool) {
	var page store.Page

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return page, false
		}
		page.Limit = limit
	}

	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return page, false
		}
		page.Before = before
	}

	return page, true
}

// GetMessages returns the thread between the caller and :userId
func (h *MessageHandler) GetMessages(c *fiber.Ctx) error {
	page, ok := parsePage(c)
	if !ok {
		return fail(c, fiber.StatusBadRequest, "Invalid pagination parameters")
	}

	thread, err := h.svc.Thread(c.UserContext(), middleware.GetUserID(c), c.Params("userId"), page)
	if err != nil {
		return respondError(c, h.log, "list messages", err)
	}

	return c.JSON(fiber.Map{
		"success":     true,
		"messages":    thread.Messages,
		"count":       len(thread.Messages),
		"counterpart": thread.Counterpart,
	})
}

// MarkAsRead marks everything :counterpartId sent the caller as read
func (h *MessageHandler) MarkAsRead(c *fiber.Ctx) error {
	n, err := h.svc.MarkRead(c.UserContext(), middleware.GetUserID(c), c.Params("counterpartId"))
	if err != nil {
		return respondError(c, h.log, "mark read", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Messages marked as read",
		"data": fiber.Map{
			"updatedCount": n,
		},
	})
}

// GetUnreadCount returns the caller's total number of unread messages
func (h *MessageHandler) GetUnreadCount(c *fiber.Ctx) error {
	total, err := h.svc.UnreadTotal(c.UserContext(), middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, "unread count", err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"unreadCount": total,
		},
	})
}
