package service

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"go-inventory-cost/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ginScenario is the reference roll-up: 100 kg ALC at 15.00 feeding GIN65 at
// 0.70 kg/kg with 2% loss.
func ginScenario(t *testing.T, alcQty string) (*harness, *model.Item, *model.Item, *model.Lot) {
	h := newHarness(t)
	alc := h.item("ALC", true, "")
	gin := h.item("GIN65", true, "")
	lot := h.receive(alc, alcQty, "15.00", "ALC-001")
	h.bom(gin, "v1", true, edge{child: alc, ratio: "0.70", loss: "0.02", yield: "1.0"})
	return h, alc, gin, lot
}

func TestAssembleGinScenario(t *testing.T) {
	h, alc, gin, alcLot := ginScenario(t, "100")

	res, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: gin.ID, ParentQty: dec("50"), Reason: "batch 7", Actor: actor})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	if len(res.Consumed) != 1 || res.Consumed[0].LotID == nil || *res.Consumed[0].LotID != alcLot.ID {
		t.Fatalf("consumed = %+v", res.Consumed)
	}
	assertDecimal(t, "ALC consumed", res.Consumed[0].Quantity, "35.7")
	assertDecimal(t, "ALC left", h.balance(alc), "64.3")
	assertDecimal(t, "total cost", res.TotalCost, "535.50")

	if len(res.Produced) != 1 {
		t.Fatalf("produced = %+v", res.Produced)
	}
	out := res.Produced[0]
	assertDecimal(t, "GIN65 qty", out.Quantity, "50")
	assertDecimal(t, "GIN65 unit cost", out.UnitCost, "10.71")
	if out.CostSource != model.CostFIFOActual || out.EstimateFlag {
		t.Fatalf("produced provenance = %s/%v, want fifo_actual", out.CostSource, out.EstimateFlag)
	}
	if !regexp.MustCompile(`^ASM-\d{14}-\d{4}$`).MatchString(out.LotCode) {
		t.Fatalf("lot code %q", out.LotCode)
	}

	lot := h.lot(out.LotID)
	if lot.Origin != model.LotAssembled || lot.ItemID != gin.ID {
		t.Fatalf("produced lot = %+v", lot)
	}
	assertDecimal(t, "GIN65 balance", h.balance(gin), "50")

	deps, err := h.repos.Dependencies.FindByProducedLot(nil, out.LotID)
	if err != nil {
		t.Fatalf("FindByProducedLot: %v", err)
	}
	if len(deps) != 1 || deps[0].ConsumedLotID == nil || *deps[0].ConsumedLotID != alcLot.ID {
		t.Fatalf("deps = %+v", deps)
	}
	if deps[0].ProducedTxID != out.TransactionID || deps[0].ConsumedTxID == nil {
		t.Fatalf("dependency does not link transactions: %+v", deps[0])
	}

	h.assertBalanced()
}

func TestAssembleInsufficientStockLeavesLedgerUnchanged(t *testing.T) {
	h, alc, gin, _ := ginScenario(t, "30")
	before := h.txCount()

	_, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: gin.ID, ParentQty: dec("50"), Actor: actor})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if after := h.txCount(); after != before {
		t.Fatalf("transactions %d -> %d", before, after)
	}
	assertDecimal(t, "ALC", h.balance(alc), "30")
	if n := h.lotCount(gin); n != 0 {
		t.Fatalf("GIN65 lots = %d", n)
	}
}

func TestAssembleAllOrNothingAcrossEdges(t *testing.T) {
	h := newHarness(t)
	a := h.item("A", true, "")
	b := h.item("B", true, "")
	c := h.item("C", true, "")
	p := h.item("P", true, "")
	h.receive(a, "100", "1", "A-1")
	h.receive(b, "1", "1", "B-1")
	h.receive(c, "100", "1", "C-1")
	h.bom(p, "v1", true,
		edge{child: a, ratio: "1"},
		edge{child: b, ratio: "1"},
		edge{child: c, ratio: "1"},
	)
	before := h.txCount()

	_, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: p.ID, ParentQty: dec("10"), Actor: actor})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if after := h.txCount(); after != before {
		t.Fatalf("transactions %d -> %d", before, after)
	}
	assertDecimal(t, "A", h.balance(a), "100")
	assertDecimal(t, "B", h.balance(b), "1")
	assertDecimal(t, "C", h.balance(c), "100")
	if n := h.lotCount(p); n != 0 {
		t.Fatalf("P lots = %d", n)
	}
	for _, action := range h.events.actions() {
		if action == "assembled" {
			t.Fatalf("rolled back assembly published an event")
		}
	}
	h.assertBalanced()
}

func TestAssembleNoCostAbortsRun(t *testing.T) {
	h := newHarness(t)
	a := h.item("A", true, "")
	power := h.item("POWER", false, "")
	p := h.item("P", true, "")
	h.receive(a, "10", "1", "A-1")
	h.bom(p, "v1", true, edge{child: a, ratio: "1"}, edge{child: power, ratio: "2", overhead: true})
	before := h.txCount()

	_, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: p.ID, ParentQty: dec("1"), Actor: actor})
	if !errors.Is(err, ErrNoCostAvailable) {
		t.Fatalf("err = %v, want ErrNoCostAvailable", err)
	}
	if after := h.txCount(); after != before {
		t.Fatalf("transactions %d -> %d", before, after)
	}
}

func TestAssembleEstimatePropagates(t *testing.T) {
	h := newHarness(t)
	gin := h.item("GIN", true, "")
	power := h.item("POWER", false, "")
	bottle := h.item("BOTTLE", true, "")
	h.estimate(power, "0.30", "no meter reading")
	h.receive(gin, "10", "10", "G-1")
	h.bom(bottle, "v1", true,
		edge{child: gin, ratio: "0.75"},
		edge{child: power, ratio: "2", overhead: true},
	)

	res, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: bottle.ID, ParentQty: dec("4"), Actor: actor})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	// 3 kg gin at 10 plus 8 kWh at 0.30
	assertDecimal(t, "total", res.TotalCost, "32.4")
	assertDecimal(t, "unit", res.Produced[0].UnitCost, "8.1")

	var overhead *ConsumedLine
	for i := range res.Consumed {
		if res.Consumed[i].IsOverhead {
			overhead = &res.Consumed[i]
		}
	}
	if overhead == nil || overhead.LotID != nil {
		t.Fatalf("overhead line = %+v", overhead)
	}
	assertDecimal(t, "power qty", overhead.Quantity, "8")

	lot := h.lot(res.Produced[0].LotID)
	if !lot.EstimateFlag || lot.CostSource != model.CostEstimated {
		t.Fatalf("lot provenance = %s/%v, want estimated", lot.CostSource, lot.EstimateFlag)
	}
	if !strings.Contains(lot.EstimateReason, "no meter reading") {
		t.Fatalf("estimate reason = %q", lot.EstimateReason)
	}

	// The flag survives another level.
	crate := h.item("CRATE", true, "")
	h.bom(crate, "v1", true, edge{child: bottle, ratio: "12"})
	res, err = h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: crate.ID, ParentQty: dec("0.25"), Actor: actor})
	if err != nil {
		t.Fatalf("Assemble crate: %v", err)
	}
	if !res.Produced[0].EstimateFlag {
		t.Fatalf("crate lost the estimate flag: %+v", res.Produced[0])
	}

	deps, err := h.repos.Dependencies.FindByProducedLot(nil, lot.ID)
	if err != nil {
		t.Fatalf("FindByProducedLot: %v", err)
	}
	overheads := 0
	for _, d := range deps {
		if d.IsOverhead {
			overheads++
		}
	}
	if len(deps) != 2 || overheads != 1 {
		t.Fatalf("deps = %+v, want one physical and one overhead edge", deps)
	}
}

func TestAssembleConservesCost(t *testing.T) {
	h := newHarness(t)
	x := h.item("X", true, "")
	y := h.item("Y", true, "2.2")
	mix := h.item("MIX", true, "")
	h.receive(x, "4", "5", "X-1")
	h.receive(x, "3", "7.123", "X-2")
	h.receive(x, "50", "9.5", "X-3")
	h.receive(y, "100", "", "Y-1")
	h.bom(mix, "v1", true,
		edge{child: x, ratio: "1.5", loss: "0.05", yield: "0.9"},
		edge{child: y, ratio: "0.333333"},
	)

	res, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: mix.ID, ParentQty: dec("7"), Actor: actor})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}

	sum := decimal.Zero
	sources := map[model.CostSource]bool{}
	for _, line := range res.Consumed {
		sum = sum.Add(line.ExtendedCost)
		sources[line.CostSource] = true
	}
	if !sum.Equal(res.TotalCost) {
		t.Fatalf("consumed sum %s != total %s", sum, res.TotalCost)
	}
	if len(res.Consumed) != 4 {
		t.Fatalf("consumed lines = %d, want 3 X lots and 1 Y lot", len(res.Consumed))
	}

	out := res.Produced[0]
	diff := out.UnitCost.Mul(out.Quantity).Sub(res.TotalCost).Abs()
	if diff.GreaterThan(out.Quantity.Mul(dec("0.000001"))) {
		t.Fatalf("unit %s × qty %s differs from consumed %s by %s", out.UnitCost, out.Quantity, res.TotalCost, diff)
	}
	if out.CostSource != model.CostStandard {
		t.Fatalf("mixed actual/standard inputs rolled up to %s", out.CostSource)
	}
	h.assertBalanced()
}

func TestAssemblePinnedVersion(t *testing.T) {
	h := newHarness(t)
	alc := h.item("ALC", true, "")
	gin := h.item("GIN", true, "")
	h.receive(alc, "100", "1", "A-1")
	h.bom(gin, "v1", true, edge{child: alc, ratio: "1"})
	h.bom(gin, "v2", false, edge{child: alc, ratio: "2"})

	if _, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: gin.ID, ParentQty: dec("5"), Actor: actor}); err != nil {
		t.Fatalf("Assemble primary: %v", err)
	}
	assertDecimal(t, "after primary", h.balance(alc), "95")

	if _, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: gin.ID, ParentQty: dec("5"), Version: "v2", Actor: actor}); err != nil {
		t.Fatalf("Assemble v2: %v", err)
	}
	assertDecimal(t, "after v2", h.balance(alc), "85")

	_, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: gin.ID, ParentQty: dec("5"), Version: "v9", Actor: actor})
	if !errors.Is(err, ErrNoAssemblyDefinition) {
		t.Fatalf("err = %v, want ErrNoAssemblyDefinition", err)
	}
}

func TestAssembleRejectsMissingDefinitionAndUnknownItem(t *testing.T) {
	h := newHarness(t)
	gin := h.item("GIN", true, "")

	_, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: gin.ID, ParentQty: dec("1"), Actor: actor})
	if !errors.Is(err, ErrNoAssemblyDefinition) {
		t.Fatalf("err = %v, want ErrNoAssemblyDefinition", err)
	}
	_, err = h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: uuid.New(), ParentQty: dec("1"), Actor: actor})
	if !errors.Is(err, ErrUnknownItem) {
		t.Fatalf("err = %v, want ErrUnknownItem", err)
	}
	_, err = h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: gin.ID, ParentQty: dec("0"), Actor: actor})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestDisassembleApportionsByRatio(t *testing.T) {
	h := newHarness(t)
	a := h.item("A", true, "")
	b := h.item("B", true, "")
	labor := h.item("LABOR", false, "1")
	kit := h.item("KIT", true, "")
	h.bom(kit, "v1", true,
		edge{child: a, ratio: "3"},
		edge{child: b, ratio: "1", loss: "0.1"},
		edge{child: labor, ratio: "1", overhead: true},
	)
	h.receive(kit, "10", "30", "KIT-1")

	res, err := h.assembly.Disassemble(h.ctx, AssembleInput{ParentItemID: kit.ID, ParentQty: dec("3"), Actor: actor})
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	assertDecimal(t, "KIT left", h.balance(kit), "7")
	assertDecimal(t, "parent cost", res.TotalCost, "90")
	if len(res.Produced) != 2 {
		t.Fatalf("produced = %+v, want A and B only", res.Produced)
	}

	byItem := map[string]ProducedLine{}
	for _, p := range res.Produced {
		byItem[p.ItemCode] = p
		if !strings.HasPrefix(p.LotCode, "DSM-") {
			t.Fatalf("lot code %q", p.LotCode)
		}
	}
	assertDecimal(t, "A qty", byItem["A"].Quantity, "9")
	assertDecimal(t, "A unit", byItem["A"].UnitCost, "7.5")
	assertDecimal(t, "B qty", byItem["B"].Quantity, "2.7")
	assertDecimal(t, "B unit", byItem["B"].UnitCost, "8.333333")
	assertDecimal(t, "A balance", h.balance(a), "9")

	deps, err := h.repos.Dependencies.FindByProducedLot(nil, byItem["A"].LotID)
	if err != nil {
		t.Fatalf("FindByProducedLot: %v", err)
	}
	if len(deps) != 1 {
		t.Fatalf("deps = %+v", deps)
	}
	assertDecimal(t, "A share", deps[0].CostShare, "0.75")
	if lot := h.lot(byItem["A"].LotID); lot.Origin != model.LotDisassembled {
		t.Fatalf("origin = %s", lot.Origin)
	}
	h.assertBalanced()
}

func TestDisassembleConservesCostAcrossEqualChildren(t *testing.T) {
	h := newHarness(t)
	a := h.item("A", true, "")
	b := h.item("B", true, "")
	c := h.item("C", true, "")
	kit := h.item("KIT", true, "")
	h.bom(kit, "v1", true,
		edge{child: a, ratio: "1"},
		edge{child: b, ratio: "1"},
		edge{child: c, ratio: "1"},
	)
	kitLot := h.receive(kit, "1000", "3000", "KIT-1")

	res, err := h.assembly.Disassemble(h.ctx, AssembleInput{ParentItemID: kit.ID, ParentQty: dec("1000"), Actor: actor})
	if err != nil {
		t.Fatalf("Disassemble: %v", err)
	}
	assertDecimal(t, "parent cost", res.TotalCost, "3000000")

	produced := decimal.Zero
	shares := decimal.Zero
	for _, p := range res.Produced {
		produced = produced.Add(p.ExtendedCost)
		deps, err := h.repos.Dependencies.FindByProducedLot(nil, p.LotID)
		if err != nil {
			t.Fatalf("FindByProducedLot: %v", err)
		}
		for _, d := range deps {
			shares = shares.Add(d.CostShare)
		}
	}
	assertDecimal(t, "children cost", produced, "3000000")
	assertDecimal(t, "share sum", shares, "1")

	// Replaying the split at the same parent cost changes nothing.
	rv, err := h.reval.Revalue(h.ctx, RevalueInput{LotID: kitLot.ID, NewUnitCost: dec("3000"), Reason: "recount", Actor: actor, Propagate: true})
	if err != nil {
		t.Fatalf("Revalue: %v", err)
	}
	if len(rv.Propagated) != 0 {
		t.Fatalf("propagated = %+v, want none", rv.Propagated)
	}
	h.assertBalanced()
}

func TestQuantitiesBelowStoredPrecisionAreRejected(t *testing.T) {
	h, alc, gin, _ := ginScenario(t, "100")
	tiny := dec("0.0000004")

	if _, err := h.ledger.ConsumeFIFO(h.ctx, ConsumeInput{ItemID: alc.ID, Quantity: tiny, Actor: actor}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("consume err = %v, want ErrInvalidInput", err)
	}
	if _, err := h.assembly.Assemble(h.ctx, AssembleInput{ParentItemID: gin.ID, ParentQty: tiny, Actor: actor}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("assemble err = %v, want ErrInvalidInput", err)
	}
	if n := h.lotCount(gin); n != 0 {
		t.Fatalf("GIN lots = %d", n)
	}
	assertDecimal(t, "ALC balance", h.balance(alc), "100")
}

func TestDisassembleInsufficientParent(t *testing.T) {
	h := newHarness(t)
	a := h.item("A", true, "")
	kit := h.item("KIT", true, "")
	h.bom(kit, "v1", true, edge{child: a, ratio: "2"})
	h.receive(kit, "1", "30", "KIT-1")
	before := h.txCount()

	_, err := h.assembly.Disassemble(h.ctx, AssembleInput{ParentItemID: kit.ID, ParentQty: dec("2"), Actor: actor})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("err = %v, want ErrInsufficientStock", err)
	}
	if after := h.txCount(); after != before {
		t.Fatalf("transactions %d -> %d", before, after)
	}
	if n := h.lotCount(a); n != 0 {
		t.Fatalf("A lots = %d", n)
	}
}
