package routes

import (
	"context"

	"unisell/server/internal/handlers"
	"unisell/server/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

// Deps carries what the route table needs
type Deps struct {
	Messages      *handlers.MessageHandler
	StoreDriver   string
	Ping          func(context.Context) error
	SendPerMinute int
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, deps Deps) {
	api := app.Group("/api")

	// Health check (public)
	api.Get("/health", handlers.Health(deps.StoreDriver, deps.Ping))

	// Message routes (protected). Static segments are registered before
	// /:userId so they are not captured as ids.
	messages := api.Group("/messages", middleware.AuthMiddleware)
	messages.Post("/", middleware.SendRateLimiter(deps.SendPerMinute), deps.Messages.SendMessage)
	messages.Get("/conversations", middleware.RelaxedRateLimiter(), deps.Messages.GetConversations)
	messages.Get("/unread-count", middleware.RelaxedRateLimiter(), deps.Messages.GetUnreadCount)
	messages.Put("/read/:counterpartId", deps.Messages.MarkAsRead)
	messages.Get("/:userId", middleware.RelaxedRateLimiter(), deps.Messages.GetMessages)
}
