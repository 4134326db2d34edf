package service

import (
	"errors"
	"testing"
	"time"

	"go-inventory-cost/internal/model"

	"github.com/google/uuid"
)

func TestInspectRollsUpTree(t *testing.T) {
	h, _, gin, _ := ginScenario(t, "100")
	power := h.item("POWER", false, "0.5")
	bottle := h.item("BOTTLE", true, "")
	h.bom(bottle, "v1", true,
		edge{child: gin, ratio: "0.75"},
		edge{child: power, ratio: "0.2", overhead: true},
	)
	before := h.txCount()

	root, err := h.inspector.Inspect(h.ctx, bottle.ID, nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(root.Children) != 2 {
		t.Fatalf("children = %d", len(root.Children))
	}
	ginNode := root.Children[0]
	if ginNode.ItemCode != "GIN65" || len(ginNode.Children) != 1 {
		t.Fatalf("gin node = %+v", ginNode)
	}
	alcNode := ginNode.Children[0]
	assertDecimal(t, "ALC qty per GIN", alcNode.QtyPerParent, "0.714")
	assertDecimal(t, "ALC unit", alcNode.UnitCost, "15")
	assertDecimal(t, "ALC extended", alcNode.ExtendedCost, "10.71")
	if alcNode.CostSource != model.CostFIFOActual {
		t.Fatalf("ALC source = %s", alcNode.CostSource)
	}
	assertDecimal(t, "GIN unit", ginNode.UnitCost, "10.71")
	assertDecimal(t, "GIN extended", ginNode.ExtendedCost, "8.0325")

	powerNode := root.Children[1]
	if !powerNode.IsOverhead || powerNode.CostSource != model.CostStandard {
		t.Fatalf("power node = %+v", powerNode)
	}
	assertDecimal(t, "BOTTLE unit", root.UnitCost, "8.1325")
	if root.CostSource != model.CostStandard || root.EstimateFlag {
		t.Fatalf("root provenance = %s/%v", root.CostSource, root.EstimateFlag)
	}

	if after := h.txCount(); after != before {
		t.Fatalf("Inspect wrote transactions: %d -> %d", before, after)
	}
	if n := h.lotCount(bottle); n != 0 {
		t.Fatalf("Inspect created lots")
	}
}

func TestInspectDetectsCycle(t *testing.T) {
	h := newHarness(t)
	a := h.item("A", true, "1")
	b := h.item("B", true, "1")
	h.bom(a, "v1", true, edge{child: b, ratio: "1"})
	h.bom(b, "v1", true, edge{child: a, ratio: "1"})

	_, err := h.inspector.Inspect(h.ctx, a.ID, nil)
	if !errors.Is(err, ErrCircularBom) {
		t.Fatalf("err = %v, want ErrCircularBom", err)
	}
}

func TestInspectSharedChildIsNotACycle(t *testing.T) {
	h := newHarness(t)
	a := h.item("A", true, "")
	b := h.item("B", true, "")
	c := h.item("C", true, "")
	d := h.item("D", true, "2")
	h.bom(a, "v1", true, edge{child: b, ratio: "1"}, edge{child: c, ratio: "2"})
	h.bom(b, "v1", true, edge{child: d, ratio: "3"})
	h.bom(c, "v1", true, edge{child: d, ratio: "0.5"})

	root, err := h.inspector.Inspect(h.ctx, a.ID, nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	// B = 6, C = 1, A = 6 + 2×1
	assertDecimal(t, "A unit", root.UnitCost, "8")
}

func TestInspectEstimateBubblesUp(t *testing.T) {
	h := newHarness(t)
	a := h.item("A", true, "")
	b := h.item("B", true, "")
	c := h.item("C", true, "")
	d := h.item("D", true, "1")
	h.estimate(c, "4", "supplier quote pending")
	h.bom(a, "v1", true, edge{child: b, ratio: "1"}, edge{child: d, ratio: "1"})
	h.bom(b, "v1", true, edge{child: c, ratio: "1"})

	root, err := h.inspector.Inspect(h.ctx, a.ID, nil)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if !root.EstimateFlag || root.CostSource != model.CostEstimated {
		t.Fatalf("root = %s/%v, want estimated", root.CostSource, root.EstimateFlag)
	}
	if len(root.EstimateReasons) != 1 || root.EstimateReasons[0] != "supplier quote pending" {
		t.Fatalf("reasons = %v", root.EstimateReasons)
	}
	assertDecimal(t, "A unit", root.UnitCost, "5")
}

func TestInspectAsOfIgnoresLaterLots(t *testing.T) {
	h := newHarness(t)
	early := h.clock.Peek()
	alc := h.item("ALC", true, "12")
	h.receive(alc, "10", "15", "A-1")

	root, err := h.inspector.Inspect(h.ctx, alc.ID, &early)
	if err != nil {
		t.Fatalf("Inspect as of %s: %v", early, err)
	}
	assertDecimal(t, "before receipt", root.UnitCost, "12")
	if root.CostSource != model.CostStandard {
		t.Fatalf("source = %s", root.CostSource)
	}

	later := h.clock.Peek().Add(time.Hour)
	root, err = h.inspector.Inspect(h.ctx, alc.ID, &later)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	assertDecimal(t, "after receipt", root.UnitCost, "15")
}

func TestInspectFailures(t *testing.T) {
	h := newHarness(t)
	a := h.item("A", true, "")

	if _, err := h.inspector.Inspect(h.ctx, uuid.New(), nil); !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("err = %v, want ErrUnknownItem", err)
	}
	if _, err := h.inspector.Inspect(h.ctx, a.ID, nil); !errors.Is(err, ErrNoCostAvailable) {
		t.Fatalf("err = %v, want ErrNoCostAvailable", err)
	}
}

func TestInspectAsOfSeesLotsConsumedSince(t *testing.T) {
	h := newHarness(t)
	alc := h.item("ALC", true, "12")
	h.receive(alc, "10", "15", "A-1")
	onHand := h.clock.Peek()

	root, err := h.inspector.Inspect(h.ctx, alc.ID, &onHand)
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	assertDecimal(t, "while on hand", root.UnitCost, "15")

	if _, err := h.ledger.ConsumeFIFO(h.ctx, ConsumeInput{ItemID: alc.ID, Quantity: dec("10"), Actor: actor}); err != nil {
		t.Fatalf("ConsumeFIFO: %v", err)
	}

	root, err = h.inspector.Inspect(h.ctx, alc.ID, &onHand)
	if err != nil {
		t.Fatalf("Inspect after consumption: %v", err)
	}
	assertDecimal(t, "same instant after consumption", root.UnitCost, "15")
	if root.CostSource != model.CostFIFOActual {
		t.Fatalf("source = %s, want fifo actual", root.CostSource)
	}

	root, err = h.inspector.Inspect(h.ctx, alc.ID, nil)
	if err != nil {
		t.Fatalf("Inspect now: %v", err)
	}
	assertDecimal(t, "now, nothing on hand", root.UnitCost, "12")
}
