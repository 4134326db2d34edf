package service

import (
	"context"
	"sync"
	"testing"

	"go-inventory-cost/internal/lock"
	"go-inventory-cost/internal/model"
	"go-inventory-cost/internal/repository"
	"go-inventory-cost/internal/testutil"
	"go-inventory-cost/internal/ws"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const actor = "tester@plant.local"

type recorder struct {
	mu     sync.Mutex
	events []ws.Event
}

func (r *recorder) Publish(ev ws.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Action)
	}
	return out
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	env    *Env
	repos  *repository.Set
	clock  *testutil.Clock
	events *recorder

	items     ItemService
	ledger    LedgerService
	assembly  AssemblyService
	inspector InspectorService
	reval     RevaluationService
	valuation ValuationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	repos := repository.NewSet(db)
	clock := testutil.NewClock()
	events := &recorder{}
	env := &Env{
		DB:     db,
		Locker: lock.NewMemoryLocker(),
		Clock:  clock,
		Notify: events,
		Log:    testutil.Logger(),
	}
	resolver := NewCostResolver()
	return &harness{
		t:         t,
		ctx:       context.Background(),
		env:       env,
		repos:     repos,
		clock:     clock,
		events:    events,
		items:     NewItemService(env, repos),
		ledger:    NewLedgerService(env, repos, resolver),
		assembly:  NewAssemblyService(env, repos, resolver),
		inspector: NewInspectorService(env, repos, resolver),
		reval:     NewRevaluationService(env, repos, resolver),
		valuation: NewValuationService(env, repos, resolver),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func cost(s string) decimal.NullDecimal {
	if s == "" {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(dec(s))
}

func (h *harness) item(code string, tracked bool, standard string) *model.Item {
	h.t.Helper()
	it, err := h.items.CreateItem(h.ctx, CreateItemInput{
		Code:         code,
		Name:         code,
		Unit:         "kg",
		IsTracked:    tracked,
		StandardCost: cost(standard),
		Actor:        actor,
	})
	if err != nil {
		h.t.Fatalf("CreateItem %s: %v", code, err)
	}
	return it
}

func (h *harness) estimate(it *model.Item, c, reason string) {
	h.t.Helper()
	if _, err := h.items.SetEstimate(h.ctx, it.ID, cost(c), reason, actor); err != nil {
		h.t.Fatalf("SetEstimate %s: %v", it.Code, err)
	}
}

func (h *harness) receive(it *model.Item, qty, unitCost, code string) *model.Lot {
	h.t.Helper()
	lot, err := h.ledger.Receive(h.ctx, ReceiveInput{
		ItemID:   it.ID,
		Quantity: dec(qty),
		LotCode:  code,
		UnitCost: cost(unitCost),
		Actor:    actor,
	})
	if err != nil {
		h.t.Fatalf("Receive %s/%s: %v", it.Code, code, err)
	}
	return lot
}

type edge struct {
	child    *model.Item
	ratio    string
	loss     string
	yield    string
	overhead bool
}

func (h *harness) bom(parent *model.Item, version string, primary bool, edges ...edge) {
	h.t.Helper()
	in := DefineAssemblyInput{
		ParentItemID: parent.ID,
		Version:      version,
		IsPrimary:    primary,
		Actor:        actor,
	}
	for _, e := range edges {
		loss, yield := e.loss, e.yield
		if loss == "" {
			loss = "0"
		}
		if yield == "" {
			yield = "1"
		}
		in.Edges = append(in.Edges, AssemblyEdgeInput{
			ChildItemID:        e.child.ID,
			Ratio:              dec(e.ratio),
			LossFactor:         dec(loss),
			YieldFactor:        dec(yield),
			IsEnergyOrOverhead: e.overhead,
		})
	}
	if _, err := h.items.DefineAssembly(h.ctx, in); err != nil {
		h.t.Fatalf("DefineAssembly %s: %v", parent.Code, err)
	}
}

func (h *harness) balance(it *model.Item) decimal.Decimal {
	h.t.Helper()
	b, err := h.ledger.Balance(h.ctx, it.ID)
	if err != nil {
		h.t.Fatalf("Balance %s: %v", it.Code, err)
	}
	return b
}

func (h *harness) lot(id uuid.UUID) *model.Lot {
	h.t.Helper()
	lot, err := h.repos.Lots.FindByID(nil, id)
	if err != nil {
		h.t.Fatalf("FindByID lot %s: %v", id, err)
	}
	return lot
}

func (h *harness) txCount() int64 {
	h.t.Helper()
	n, err := h.repos.Transactions.Count(nil)
	if err != nil {
		h.t.Fatalf("Count: %v", err)
	}
	return n
}

func (h *harness) lotCount(it *model.Item) int64 {
	h.t.Helper()
	n, err := h.repos.Lots.CountByItem(nil, it.ID)
	if err != nil {
		h.t.Fatalf("CountByItem: %v", err)
	}
	return n
}

func (h *harness) assertBalanced() {
	h.t.Helper()
	found, err := h.ledger.VerifyAll(h.ctx)
	if err != nil {
		h.t.Fatalf("VerifyAll: %v", err)
	}
	if len(found) > 0 {
		h.t.Fatalf("ledger discrepancies: %+v", found)
	}
}

func assertDecimal(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %s, want %s", what, got, want)
	}
}
