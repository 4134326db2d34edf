package handler

import (
	"errors"

	"go-inventory-cost/internal/lock"
	"go-inventory-cost/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// getActor returns the token subject set by RequireAuth.
func getActor(c *fiber.Ctx) string {
	actor, _ := c.Locals("actor").(string)
	if actor == "" {
		return "system"
	}
	return actor
}

func parseUUID(c *fiber.Ctx, param string) (uuid.UUID, error) {
	return uuid.Parse(c.Params(param))
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, service.ErrUnknownItem), errors.Is(err, service.ErrUnknownLot):
		return fiber.StatusNotFound
	case errors.Is(err, service.ErrInsufficientStock), errors.Is(err, service.ErrDuplicateLotCode):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrNoCostAvailable),
		errors.Is(err, service.ErrNoAssemblyDefinition),
		errors.Is(err, service.ErrCircularBom),
		errors.Is(err, service.ErrItemNotTracked):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, lock.ErrNotObtained):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "Internal Server Error"
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
