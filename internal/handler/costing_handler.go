package handler

import (
	"errors"
	"time"

	"go-inventory-cost/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type CostingHandler struct {
	inspector service.InspectorService
	reval     service.RevaluationService
}

func NewCostingHandler(inspector service.InspectorService, reval service.RevaluationService) *CostingHandler {
	return &CostingHandler{inspector: inspector, reval: reval}
}

// CostTree accepts an optional as_of query parameter in RFC 3339 or
// YYYY-MM-DD form.
func (h *CostingHandler) CostTree(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid item ID"})
	}

	var asOf *time.Time
	if raw := c.Query("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			t, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "Invalid as_of, use RFC 3339 or YYYY-MM-DD"})
		}
		asOf = &t
	}

	tree, err := h.inspector.Inspect(c.UserContext(), id, asOf)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(tree)
}

type revalueRequest struct {
	NewUnitCost decimal.Decimal `json:"new_unit_cost"`
	Reason      string          `json:"reason"`
	Propagate   *bool           `json:"propagate"`
}

// Revalue answers 207 when the direct change committed but propagation
// stopped part way.
func (h *CostingHandler) Revalue(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid lot ID"})
	}
	var req revalueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid JSON"})
	}
	propagate := true
	if req.Propagate != nil {
		propagate = *req.Propagate
	}

	res, err := h.reval.Revalue(c.UserContext(), service.RevalueInput{
		LotID:       id,
		NewUnitCost: req.NewUnitCost,
		Reason:      req.Reason,
		Actor:       getActor(c),
		Propagate:   propagate,
	})
	var perr *service.PropagationError
	if errors.As(err, &perr) {
		return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{
			"error":         err.Error(),
			"failed_lot_id": perr.FailedLotID,
			"updated":       perr.Updated,
			"data":          res,
		})
	}
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Lot revalued", "data": res})
}

func (h *CostingHandler) History(c *fiber.Ctx) error {
	id, err := parseUUID(c, "id")
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "Invalid lot ID"})
	}
	rows, err := h.reval.History(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(rows)
}
