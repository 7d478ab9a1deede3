package api

import (
	"errors"

	"github.com/aureeture/mentor_sessions/internal/service"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// mapServiceError переводит ошибки ядра в HTTP-ответы
func mapServiceError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	var tooEarly *service.TooEarlyError

	switch {
	case errors.As(err, &tooEarly):
		return c.Status(fiber.StatusTooEarly).JSON(fiber.Map{
			"error":              err.Error(),
			"minutes_until_join": tooEarly.MinutesUntilJoin,
		})
	case errors.Is(err, service.ErrExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrValidation):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrPaymentRequired):
		return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidState):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, service.ErrServiceUnavailable):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	default:
		logger.Error("Request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to process session request"})
	}
}
