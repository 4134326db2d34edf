package handler

import (
	"go-inventory-cost/internal/service"

	"github.com/gofiber/fiber/v2"
)

type LedgerHandler struct {
	service service.LedgerService
}

func NewLedgerHandler(s service.LedgerService) *LedgerHandler {
	return &LedgerHandler{service: s}
}

func (h *LedgerHandler) Receive(c *fiber.Ctx) error {
	var req service.ReceiveInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	req.Actor = getActor(c)

	lot, err := h.service.Receive(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Lot received", "data": lot})
}

func (h *LedgerHandler) Consume(c *fiber.Ctx) error {
	var req service.ConsumeInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	req.Actor = getActor(c)

	slices, err := h.service.ConsumeFIFO(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Stock consumed", "data": slices})
}

func (h *LedgerHandler) Balance(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid item ID"})
	}
	balance, err := h.service.Balance(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"item_id": id, "balance": balance})
}

func (h *LedgerHandler) Lots(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid item ID"})
	}
	lots, err := h.service.Lots(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(lots)
}

func (h *LedgerHandler) LotHistory(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid lot ID"})
	}
	history, err := h.service.LotHistory(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(history)
}

func (h *LedgerHandler) Verify(c *fiber.Ctx) error {
	found, err := h.service.VerifyAll(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"balanced": len(found) == 0, "discrepancies": found})
}
