package handler

import (
	"strconv"

	"go-inventory-cost/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ValuationHandler struct {
	service service.ValuationService
}

func NewValuationHandler(s service.ValuationService) *ValuationHandler {
	return &ValuationHandler{service: s}
}

// GetMovement returns received/issued/produced totals per day for charts
// Query params: days (default 7)
func (h *ValuationHandler) GetMovement(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days", "7"))
	if err != nil || days <= 0 {
		days = 7
	}

	data, err := h.service.Movement(c.UserContext(), days)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to fetch stock movement"})
	}

	return c.JSON(fiber.Map{
		"period": days,
		"data":   data,
	})
}

// GetSummary returns the on-hand valuation per item
func (h *ValuationHandler) GetSummary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext())
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "Failed to compute valuation"})
	}
	return c.JSON(summary)
}
