package api

import (
	"errors"

	"github.com/Jazys/instagen-sub000/internal/models"
	"github.com/gofiber/fiber/v2"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// respondError maps service errors onto HTTP responses. Typed app errors
// keep their status and sanitized message; anything else is a generic
// retryable storage/infrastructure fault.
func respondError(c *fiber.Ctx, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		sanitized := models.SanitizeError(appErr)
		return c.Status(sanitized.GetStatusCode()).JSON(fiber.Map{
			"error":     sanitized.Message,
			"type":      sanitized.Type,
			"retryable": sanitized.Retryable,
		})
	}

	fiberlog.Errorf("Unhandled error on %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":     "A temporary error occurred, please retry",
		"type":      models.ErrorTypeInternal,
		"retryable": true,
	})
}
