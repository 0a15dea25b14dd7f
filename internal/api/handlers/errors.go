package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/qanoonai/backend/internal/ingestion"
	"github.com/qanoonai/backend/internal/search"
	"github.com/qanoonai/backend/pkg/logger"
)

// respondError maps service errors onto HTTP statuses. Upstream failures
// are marked retryable so clients can back off and try again.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, search.ErrGraphDisabled):
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "Citation graph is not enabled",
		})
	case errors.Is(err, ingestion.ErrIngestionInProgress):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	case errors.Is(err, search.ErrUpstreamUnavailable):
		logger.Error("Upstream unavailable", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     "Search backend temporarily unavailable",
			"retryable": true,
		})
	default:
		logger.Error("Request failed", zap.String("path", c.Path()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}

// notFound answers with a null payload.
func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(nil)
}
