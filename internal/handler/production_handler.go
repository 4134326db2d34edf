package handler

import (
	"go-inventory-cost/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ProductionHandler struct {
	service service.AssemblyService
}

func NewProductionHandler(s service.AssemblyService) *ProductionHandler {
	return &ProductionHandler{service: s}
}

func (h *ProductionHandler) Assemble(c *fiber.Ctx) error {
	var req service.AssembleInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	req.Actor = getActor(c)

	res, err := h.service.Assemble(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Assembled", "data": res})
}

func (h *ProductionHandler) Disassemble(c *fiber.Ctx) error {
	var req service.AssembleInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	req.Actor = getActor(c)

	res, err := h.service.Disassemble(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "Disassembled", "data": res})
}
