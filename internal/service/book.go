package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go-inventory-cost/internal/model"
	"go-inventory-cost/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Slice is one lot's share of a FIFO consumption.
type Slice struct {
	LotID          uuid.UUID        `json:"lot_id"`
	LotCode        string           `json:"lot_code"`
	TransactionID  uuid.UUID        `json:"transaction_id"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitCost       decimal.Decimal  `json:"unit_cost"`
	ExtendedCost   decimal.Decimal  `json:"extended_cost"`
	CostSource     model.CostSource `json:"cost_source"`
	EstimateFlag   bool             `json:"estimate_flag"`
	EstimateReason string           `json:"estimate_reason,omitempty"`
}

// book writes ledger rows inside a transaction owned by the caller. It takes
// no locks; callers hold the item locks for everything they touch.
type book struct {
	repos    *repository.Set
	resolver *CostResolver
}

type entryMeta struct {
	reason string
	actor  string
	at     time.Time
}

func (b *book) item(tx *gorm.DB, id uuid.UUID) (*model.Item, error) {
	item, err := b.repos.Items.FindByID(tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	return item, err
}

func (b *book) lot(tx *gorm.DB, id uuid.UUID) (*model.Lot, error) {
	lot, err := b.repos.Lots.FindByID(tx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLot, id)
	}
	return lot, err
}

// consume issues qty of item from its active lots, oldest first. Availability
// and every slice's cost are settled before the first ISSUE row is written.
func (b *book) consume(tx *gorm.DB, item *model.Item, qty decimal.Decimal, meta entryMeta) ([]Slice, error) {
	lots, err := b.repos.Lots.FindActiveFIFO(tx, item.ID)
	if err != nil {
		return nil, err
	}

	available := decimal.Zero
	for _, lot := range lots {
		available = available.Add(lot.Quantity)
	}
	if available.LessThan(qty) {
		return nil, fmt.Errorf("%w: item %s requested %s, available %s", ErrInsufficientStock, item.Code, qty, available)
	}

	type take struct {
		lot  *model.Lot
		qty  decimal.Decimal
		cost ResolvedCost
	}
	var plan []take
	remaining := qty
	for i := range lots {
		if !remaining.IsPositive() {
			break
		}
		lot := &lots[i]
		q := decimal.Min(lot.Quantity, remaining)
		rc, err := b.resolver.Resolve(item, lot)
		if err != nil {
			return nil, err
		}
		plan = append(plan, take{lot: lot, qty: q, cost: rc})
		remaining = remaining.Sub(q)
	}

	slices := make([]Slice, 0, len(plan))
	for _, p := range plan {
		extended := round(p.qty.Mul(p.cost.UnitCost))
		entry := &model.Transaction{
			LotID:          p.lot.ID,
			ItemID:         item.ID,
			Type:           model.TxIssue,
			Quantity:       p.qty.Neg(),
			UnitCost:       p.cost.UnitCost,
			ExtendedCost:   extended.Neg(),
			CostSource:     p.cost.Source,
			EstimateFlag:   p.cost.EstimateFlag,
			EstimateReason: p.cost.EstimateReason,
			Reason:         meta.reason,
			OccurredAt:     meta.at,
		}
		entry.CreatedBy = meta.actor
		if err := b.repos.Transactions.Create(tx, entry); err != nil {
			return nil, err
		}
		if err := b.repos.Lots.UpdateQuantity(tx, p.lot.ID, p.lot.Quantity.Sub(p.qty)); err != nil {
			return nil, err
		}

		slices = append(slices, Slice{
			LotID:          p.lot.ID,
			LotCode:        p.lot.LotCode,
			TransactionID:  entry.ID,
			Quantity:       p.qty,
			UnitCost:       p.cost.UnitCost,
			ExtendedCost:   extended,
			CostSource:     p.cost.Source,
			EstimateFlag:   p.cost.EstimateFlag,
			EstimateReason: p.cost.EstimateReason,
		})
	}
	return slices, nil
}

// produced describes a lot created by assembly or disassembly.
type produced struct {
	item     *model.Item
	qty      decimal.Decimal
	unitCost decimal.Decimal
	origin   model.LotOrigin
	rollup   rollup
}

// produce creates the lot and its PRODUCE transaction.
func (b *book) produce(tx *gorm.DB, p produced, meta entryMeta) (*model.Lot, *model.Transaction, error) {
	code, err := b.nextLotCode(tx, p.item.ID, p.origin, meta.at)
	if err != nil {
		return nil, nil, err
	}

	cost := decimal.NewNullDecimal(p.unitCost)
	lot := &model.Lot{
		ItemID:           p.item.ID,
		LotCode:          code,
		Origin:           p.origin,
		InitialQuantity:  p.qty,
		Quantity:         p.qty,
		ReceivedAt:       meta.at,
		IsActive:         p.qty.IsPositive(),
		OriginalUnitCost: cost,
		CurrentUnitCost:  cost,
		CostSource:       p.rollup.source,
		EstimateFlag:     p.rollup.estimate,
		EstimateReason:   p.rollup.reason(),
		CreatedBy:        meta.actor,
	}
	if err := b.repos.Lots.Create(tx, lot); err != nil {
		return nil, nil, err
	}

	entry := &model.Transaction{
		LotID:          lot.ID,
		ItemID:         p.item.ID,
		Type:           model.TxProduce,
		Quantity:       p.qty,
		UnitCost:       p.unitCost,
		ExtendedCost:   round(p.qty.Mul(p.unitCost)),
		CostSource:     lot.CostSource,
		EstimateFlag:   lot.EstimateFlag,
		EstimateReason: lot.EstimateReason,
		Reason:         meta.reason,
		OccurredAt:     meta.at,
	}
	entry.CreatedBy = meta.actor
	if err := b.repos.Transactions.Create(tx, entry); err != nil {
		return nil, nil, err
	}
	return lot, entry, nil
}

// nextLotCode derives <ASM|DSM>-<timestamp>-<seq> from the item's lot count.
func (b *book) nextLotCode(tx *gorm.DB, itemID uuid.UUID, origin model.LotOrigin, at time.Time) (string, error) {
	prefix := "ASM"
	if origin == model.LotDisassembled {
		prefix = "DSM"
	}
	count, err := b.repos.Lots.CountByItem(tx, itemID)
	if err != nil {
		return "", err
	}
	for seq := count + 1; ; seq++ {
		code := fmt.Sprintf("%s-%s-%04d", prefix, at.Format("20060102150405"), seq)
		exists, err := b.repos.Lots.CodeExists(tx, itemID, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
}

// rollup folds the provenance of every input into the produced cost source:
// any estimate makes it estimated, all-actual stays actual, anything else is
// standard.
type rollup struct {
	source    model.CostSource
	estimate  bool
	reasons   []string
	allActual bool
	seen      map[string]bool
}

func newRollup() rollup {
	return rollup{allActual: true, seen: map[string]bool{}}
}

func (r *rollup) add(source model.CostSource, estimate bool, reason string) {
	if estimate {
		r.estimate = true
		if reason != "" && !r.seen[reason] {
			r.seen[reason] = true
			r.reasons = append(r.reasons, reason)
		}
	}
	if source != model.CostFIFOActual {
		r.allActual = false
	}
	switch {
	case r.estimate:
		r.source = model.CostEstimated
	case r.allActual:
		r.source = model.CostFIFOActual
	default:
		r.source = model.CostStandard
	}
}

func (r *rollup) reason() string {
	return strings.Join(r.reasons, "; ")
}

// contribution is one input's share of a produced lot's extended cost. Both
// production and revaluation price inputs through it so a replayed cost
// reproduces the recorded one exactly.
func contribution(qty, unitCost, share decimal.Decimal) decimal.Decimal {
	return round(qty.Mul(unitCost).Mul(share))
}
