package handlers

import (
	"reflect"
	"strings"

	"unisell/server/internal/messaging"
	"unisell/server/internal/middleware"
	"unisell/server/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func fail(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}

// respondError maps service errors onto the HTTP error envelope
func respondError(c *fiber.Ctx, log *zap.Logger, op string, err error) error {
	if messaging.IsValidation(err) {
		log.Debug("rejected request", zap.String("op", op), zap.Error(err))
	}

	switch {
	case errors.Is(err, messaging.ErrInvalidIdentifier):
		return fail(c, fiber.StatusBadRequest, "Invalid user ID format")
	case errors.Is(err, messaging.ErrInvalidReceiver):
		return fail(c, fiber.StatusBadRequest, "Cannot message this recipient")
	case errors.Is(err, messaging.ErrSelfMessage):
		return fail(c, fiber.StatusBadRequest, "You cannot send a message to yourself")
	case errors.Is(err, messaging.ErrEmptyContent):
		return fail(c, fiber.StatusBadRequest, "Message content is required")
	case errors.Is(err, messaging.ErrContentTooLong):
		return fail(c, fiber.StatusBadRequest, "Message content is too long")
	case errors.Is(err, messaging.ErrUnauthorized):
		return fail(c, fiber.StatusUnauthorized, "Unauthorized")
	}

	log.Error("request failed",
		zap.String("op", op),
		zap.String("request_id", c.GetRespHeader(fiber.HeaderXRequestID)),
		zap.String("caller", middleware.GetUserID(c)),
		zap.String("role", middleware.GetRole(c)),
		zap.Error(err))
	return fail(c, fiber.StatusInternalServerError, "Internal server error")
}

// NewValidator returns a validator that reports JSON field names and
// understands the objectid tag.
func NewValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return utils.IsObjectID(strings.TrimSpace(fl.Field().String()))
	})
	return v
}

// validationMessage turns the first validation failure into a client message
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request body"
	}

	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "objectid":
		return "Invalid receiver ID format"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	}
	return "Invalid " + fe.Field()
}
