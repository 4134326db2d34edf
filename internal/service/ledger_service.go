package service

import (
	"context"
	"fmt"
	"time"

	"go-inventory-cost/internal/lock"
	"go-inventory-cost/internal/model"
	"go-inventory-cost/internal/repository"
	"go-inventory-cost/internal/ws"
	"go-inventory-cost/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type ReceiveInput struct {
	ItemID   uuid.UUID       `json:"item_id" validate:"uuid_required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
	LotCode  string          `json:"lot_code" validate:"required,max=64"`
	// Null when the supplier cost is not known yet.
	UnitCost   decimal.NullDecimal `json:"unit_cost"`
	CostSource model.CostSource    `json:"cost_source" validate:"omitempty,oneof=supplier_invoice override"`
	ReceivedAt *time.Time          `json:"received_at"`
	Reason     string              `json:"reason"`
	Actor      string              `json:"-" validate:"required"`
}

type ConsumeInput struct {
	ItemID   uuid.UUID       `json:"item_id" validate:"uuid_required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
	Reason   string          `json:"reason"`
	Actor    string          `json:"-" validate:"required"`
}

// Discrepancy is a lot or item whose stored quantity disagrees with its ledger.
type Discrepancy struct {
	ItemID   uuid.UUID       `json:"item_id"`
	LotID    *uuid.UUID      `json:"lot_id,omitempty"`
	Stored   decimal.Decimal `json:"stored"`
	Computed decimal.Decimal `json:"computed"`
	Detail   string          `json:"detail"`
}

type LedgerService interface {
	Receive(ctx context.Context, in ReceiveInput) (*model.Lot, error)
	ConsumeFIFO(ctx context.Context, in ConsumeInput) ([]Slice, error)
	Balance(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error)
	Lots(ctx context.Context, itemID uuid.UUID) ([]model.Lot, error)
	LotHistory(ctx context.Context, lotID uuid.UUID) ([]model.Transaction, error)
	VerifyItem(ctx context.Context, itemID uuid.UUID) ([]Discrepancy, error)
	VerifyAll(ctx context.Context) ([]Discrepancy, error)
}

type ledgerService struct {
	env   *Env
	repos *repository.Set
	book  *book
}

func NewLedgerService(env *Env, repos *repository.Set, resolver *CostResolver) LedgerService {
	return &ledgerService{
		env:   env,
		repos: repos,
		book:  &book{repos: repos, resolver: resolver},
	}
}

func (s *ledgerService) Receive(ctx context.Context, in ReceiveInput) (*model.Lot, error) {
	// Quantities are validated at stored precision.
	in.Quantity = round(in.Quantity)
	if err := validate(&in); err != nil {
		return nil, err
	}
	if in.UnitCost.Valid && in.UnitCost.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: unit_cost must not be negative", ErrInvalidInput)
	}
	if in.CostSource == "" {
		in.CostSource = model.CostSupplierInvoice
	}

	var lot *model.Lot
	err := s.env.atomically(ctx, []string{lock.ItemKey(in.ItemID)}, func(tx *gorm.DB) error {
		item, err := s.book.item(tx, in.ItemID)
		if err != nil {
			return err
		}
		if !item.IsTracked {
			return fmt.Errorf("%w: %s", ErrItemNotTracked, item.Code)
		}

		exists, err := s.repos.Lots.CodeExists(tx, item.ID, in.LotCode)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateLotCode, item.Code, in.LotCode)
		}

		receivedAt := s.env.now()
		if in.ReceivedAt != nil {
			receivedAt = in.ReceivedAt.UTC()
		}
		qty := in.Quantity

		lot = &model.Lot{
			ItemID:           item.ID,
			LotCode:          in.LotCode,
			Origin:           model.LotReceived,
			InitialQuantity:  qty,
			Quantity:         qty,
			ReceivedAt:       receivedAt,
			IsActive:         true,
			OriginalUnitCost: in.UnitCost,
			CurrentUnitCost:  in.UnitCost,
			CostSource:       in.CostSource,
			CreatedBy:        in.Actor,
		}

		// Without an invoice cost the receipt is booked at the resolver's
		// fallback while the lot itself stays uncosted.
		rc := ResolvedCost{Source: in.CostSource}
		if in.UnitCost.Valid {
			rc.UnitCost = in.UnitCost.Decimal
		} else {
			rc, err = s.book.resolver.Resolve(item, nil)
			if err != nil {
				return err
			}
			lot.CostSource = rc.Source
			lot.EstimateFlag = rc.EstimateFlag
			lot.EstimateReason = rc.EstimateReason
		}

		if err := s.repos.Lots.Create(tx, lot); err != nil {
			return err
		}
		entry := &model.Transaction{
			LotID:          lot.ID,
			ItemID:         item.ID,
			Type:           model.TxReceipt,
			Quantity:       qty,
			UnitCost:       rc.UnitCost,
			ExtendedCost:   round(qty.Mul(rc.UnitCost)),
			CostSource:     rc.Source,
			EstimateFlag:   rc.EstimateFlag,
			EstimateReason: rc.EstimateReason,
			Reason:         in.Reason,
			OccurredAt:     receivedAt,
		}
		entry.CreatedBy = in.Actor
		return s.repos.Transactions.Create(tx, entry)
	})
	if err != nil {
		logger.LogError(s.env.Log, "ledger", "Receive", "receipt failed", in, err)
		return nil, err
	}

	s.env.publish(ws.Event{
		Type:   "stock_update",
		Action: "lot_received",
		Actor:  in.Actor,
		Data: map[string]interface{}{
			"item_id":  lot.ItemID,
			"lot_id":   lot.ID,
			"lot_code": lot.LotCode,
			"quantity": lot.Quantity,
		},
		Message: fmt.Sprintf("%s received %s into lot %s", in.Actor, lot.Quantity, lot.LotCode),
	})
	return lot, nil
}

func (s *ledgerService) ConsumeFIFO(ctx context.Context, in ConsumeInput) ([]Slice, error) {
	in.Quantity = round(in.Quantity)
	if err := validate(&in); err != nil {
		return nil, err
	}

	var slices []Slice
	err := s.env.atomically(ctx, []string{lock.ItemKey(in.ItemID)}, func(tx *gorm.DB) error {
		item, err := s.book.item(tx, in.ItemID)
		if err != nil {
			return err
		}
		if !item.IsTracked {
			return fmt.Errorf("%w: %s", ErrItemNotTracked, item.Code)
		}
		slices, err = s.book.consume(tx, item, in.Quantity, entryMeta{reason: in.Reason, actor: in.Actor, at: s.env.now()})
		return err
	})
	if err != nil {
		logger.LogError(s.env.Log, "ledger", "ConsumeFIFO", "consumption failed", in, err)
		return nil, err
	}

	s.env.publish(ws.Event{
		Type:    "stock_update",
		Action:  "stock_consumed",
		Actor:   in.Actor,
		Data:    map[string]interface{}{"item_id": in.ItemID, "quantity": in.Quantity, "slices": len(slices)},
		Message: fmt.Sprintf("%s consumed %s across %d lot(s)", in.Actor, in.Quantity, len(slices)),
	})
	return slices, nil
}

// Balance is the sum of the item's active lot quantities.
func (s *ledgerService) Balance(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	db := s.env.DB.WithContext(ctx)
	if _, err := s.book.item(db, itemID); err != nil {
		return decimal.Zero, err
	}
	lots, err := s.repos.Lots.FindActiveFIFO(db, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.Quantity)
	}
	return total, nil
}

func (s *ledgerService) Lots(ctx context.Context, itemID uuid.UUID) ([]model.Lot, error) {
	db := s.env.DB.WithContext(ctx)
	if _, err := s.book.item(db, itemID); err != nil {
		return nil, err
	}
	return s.repos.Lots.FindByItem(db, itemID)
}

func (s *ledgerService) LotHistory(ctx context.Context, lotID uuid.UUID) ([]model.Transaction, error) {
	db := s.env.DB.WithContext(ctx)
	if _, err := s.book.lot(db, lotID); err != nil {
		return nil, err
	}
	return s.repos.Transactions.FindByLot(db, lotID)
}

func (s *ledgerService) VerifyItem(ctx context.Context, itemID uuid.UUID) ([]Discrepancy, error) {
	db := s.env.DB.WithContext(ctx)
	if _, err := s.book.item(db, itemID); err != nil {
		return nil, err
	}
	lots, err := s.repos.Lots.FindByItem(db, itemID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repos.Transactions.FindByItem(db, itemID)
	if err != nil {
		return nil, err
	}
	return reconcile(lots, entries), nil
}

func (s *ledgerService) VerifyAll(ctx context.Context) ([]Discrepancy, error) {
	db := s.env.DB.WithContext(ctx)
	lots, err := s.repos.Lots.FindAll(db)
	if err != nil {
		return nil, err
	}
	entries, err := s.repos.Transactions.FindAll(db)
	if err != nil {
		return nil, err
	}
	found := reconcile(lots, entries)
	if len(found) > 0 {
		s.env.Log.WithFields(logrus.Fields{"module": "ledger", "discrepancies": len(found)}).Warn("ledger does not balance")
	}
	return found, nil
}

// reconcile checks that every lot's quantity equals the sum of its
// transactions and that each item's active-lot balance equals the sum of the
// item's transactions.
func reconcile(lots []model.Lot, entries []model.Transaction) []Discrepancy {
	byLot := make(map[uuid.UUID]decimal.Decimal)
	byItem := make(map[uuid.UUID]decimal.Decimal)
	for _, e := range entries {
		byLot[e.LotID] = byLot[e.LotID].Add(e.Quantity)
		byItem[e.ItemID] = byItem[e.ItemID].Add(e.Quantity)
	}

	var out []Discrepancy
	onHand := make(map[uuid.UUID]decimal.Decimal)
	var itemOrder []uuid.UUID
	for _, lot := range lots {
		if _, ok := onHand[lot.ItemID]; !ok {
			itemOrder = append(itemOrder, lot.ItemID)
			onHand[lot.ItemID] = decimal.Zero
		}
		if lot.IsActive {
			onHand[lot.ItemID] = onHand[lot.ItemID].Add(lot.Quantity)
		}

		computed := byLot[lot.ID]
		if !computed.Equal(lot.Quantity) {
			id := lot.ID
			out = append(out, Discrepancy{
				ItemID:   lot.ItemID,
				LotID:    &id,
				Stored:   lot.Quantity,
				Computed: computed,
				Detail:   fmt.Sprintf("lot %s quantity differs from its transactions", lot.LotCode),
			})
		}
		if lot.Quantity.IsNegative() {
			id := lot.ID
			out = append(out, Discrepancy{
				ItemID: lot.ItemID, LotID: &id, Stored: lot.Quantity, Computed: computed,
				Detail: fmt.Sprintf("lot %s is negative", lot.LotCode),
			})
		}
	}

	for _, itemID := range itemOrder {
		if !onHand[itemID].Equal(byItem[itemID]) {
			out = append(out, Discrepancy{
				ItemID:   itemID,
				Stored:   onHand[itemID],
				Computed: byItem[itemID],
				Detail:   "on-hand balance differs from item transactions",
			})
		}
	}
	return out
}
