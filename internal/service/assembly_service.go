package service

import (
	"context"
	"fmt"

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

const (
	OpAssemble    = "assemble"
	OpDisassemble = "disassemble"
)

type AssembleInput struct {
	ParentItemID uuid.UUID       `json:"parent_item_id" validate:"uuid_required"`
	ParentQty    decimal.Decimal `json:"parent_qty" validate:"gt=0"`
	// Version pins a BOM version; empty uses the primary set.
	Version string `json:"version" validate:"max=32"`
	Reason  string `json:"reason"`
	Actor   string `json:"-" validate:"required"`
}

// ConsumedLine is one input of a production run. Overhead lines have no lot.
type ConsumedLine struct {
	ItemID         uuid.UUID        `json:"item_id"`
	ItemCode       string           `json:"item_code"`
	LotID          *uuid.UUID       `json:"lot_id,omitempty"`
	LotCode        string           `json:"lot_code,omitempty"`
	TransactionID  *uuid.UUID       `json:"transaction_id,omitempty"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitCost       decimal.Decimal  `json:"unit_cost"`
	ExtendedCost   decimal.Decimal  `json:"extended_cost"`
	CostSource     model.CostSource `json:"cost_source"`
	EstimateFlag   bool             `json:"estimate_flag"`
	EstimateReason string           `json:"estimate_reason,omitempty"`
	IsOverhead     bool             `json:"is_overhead"`
}

type ProducedLine struct {
	ItemID         uuid.UUID        `json:"item_id"`
	ItemCode       string           `json:"item_code"`
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

type AssemblyResult struct {
	Operation    string          `json:"operation"`
	ParentItemID uuid.UUID       `json:"parent_item_id"`
	ParentQty    decimal.Decimal `json:"parent_qty"`
	Consumed     []ConsumedLine  `json:"consumed"`
	Produced     []ProducedLine  `json:"produced"`
	TotalCost    decimal.Decimal `json:"total_cost"`
}

type AssemblyService interface {
	Assemble(ctx context.Context, in AssembleInput) (*AssemblyResult, error)
	Disassemble(ctx context.Context, in AssembleInput) (*AssemblyResult, error)
}

type assemblyService struct {
	env   *Env
	repos *repository.Set
	book  *book
}

func NewAssemblyService(env *Env, repos *repository.Set, resolver *CostResolver) AssemblyService {
	return &assemblyService{
		env:   env,
		repos: repos,
		book:  &book{repos: repos, resolver: resolver},
	}
}

// definition loads the edge set in force now and the lock keys covering the
// parent and every child. Edges are read before locking so the whole batch
// can be acquired at once.
func (s *assemblyService) definition(ctx context.Context, in AssembleInput) ([]model.Assembly, []string, error) {
	db := s.env.DB.WithContext(ctx)
	if _, err := s.book.item(db, in.ParentItemID); err != nil {
		return nil, nil, err
	}
	edges, err := s.repos.Assemblies.FindEffective(db, in.ParentItemID, in.Version, s.env.now())
	if err != nil {
		return nil, nil, err
	}
	if len(edges) == 0 {
		if in.Version != "" {
			return nil, nil, fmt.Errorf("%w: item %s version %s", ErrNoAssemblyDefinition, in.ParentItemID, in.Version)
		}
		return nil, nil, fmt.Errorf("%w: item %s", ErrNoAssemblyDefinition, in.ParentItemID)
	}

	keys := []string{lock.ItemKey(in.ParentItemID)}
	for _, e := range edges {
		keys = append(keys, lock.ItemKey(e.ChildItemID))
	}
	return edges, keys, nil
}

func (s *assemblyService) children(tx *gorm.DB, edges []model.Assembly) (map[uuid.UUID]*model.Item, error) {
	ids := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ChildItemID)
	}
	items, err := s.repos.Items.FindByIDs(tx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := items[id]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
		}
	}
	return items, nil
}

// isOverhead reports whether an edge carries cost without physical stock.
func isOverhead(e model.Assembly, child *model.Item) bool {
	return e.IsEnergyOrOverhead || !child.IsTracked
}

func (s *assemblyService) Assemble(ctx context.Context, in AssembleInput) (*AssemblyResult, error) {
	in.ParentQty = round(in.ParentQty)
	if err := validate(&in); err != nil {
		return nil, err
	}
	edges, keys, err := s.definition(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &AssemblyResult{Operation: OpAssemble, ParentItemID: in.ParentItemID, ParentQty: in.ParentQty}
	err = s.env.atomically(ctx, keys, func(tx *gorm.DB) error {
		parent, err := s.book.item(tx, in.ParentItemID)
		if err != nil {
			return err
		}
		if !parent.IsTracked {
			return fmt.Errorf("%w: %s cannot hold produced stock", ErrItemNotTracked, parent.Code)
		}
		items, err := s.children(tx, edges)
		if err != nil {
			return err
		}

		meta := entryMeta{reason: in.Reason, actor: in.Actor, at: s.env.now()}
		roll := newRollup()
		total := decimal.Zero
		var deps []model.CostDependency

		for _, e := range edges {
			child := items[e.ChildItemID]
			required := round(result.ParentQty.Mul(e.QtyPerParent()))

			if isOverhead(e, child) {
				rc, err := s.book.resolver.Resolve(child, nil)
				if err != nil {
					return err
				}
				extended := contribution(required, rc.UnitCost, decimal.NewFromInt(1))
				total = total.Add(extended)
				roll.add(rc.Source, rc.EstimateFlag, rc.EstimateReason)
				result.Consumed = append(result.Consumed, ConsumedLine{
					ItemID: child.ID, ItemCode: child.Code,
					Quantity: required, UnitCost: rc.UnitCost, ExtendedCost: extended,
					CostSource: rc.Source, EstimateFlag: rc.EstimateFlag, EstimateReason: rc.EstimateReason,
					IsOverhead: true,
				})
				deps = append(deps, model.CostDependency{
					ConsumedItemID: child.ID,
					Quantity:       required,
					UnitCost:       rc.UnitCost,
					CostShare:      decimal.NewFromInt(1),
					IsOverhead:     true,
				})
				continue
			}

			slices, err := s.book.consume(tx, child, required, meta)
			if err != nil {
				return err
			}
			for _, sl := range slices {
				lotID, txID := sl.LotID, sl.TransactionID
				total = total.Add(sl.ExtendedCost)
				roll.add(sl.CostSource, sl.EstimateFlag, sl.EstimateReason)
				result.Consumed = append(result.Consumed, ConsumedLine{
					ItemID: child.ID, ItemCode: child.Code,
					LotID: &lotID, LotCode: sl.LotCode, TransactionID: &txID,
					Quantity: sl.Quantity, UnitCost: sl.UnitCost, ExtendedCost: sl.ExtendedCost,
					CostSource: sl.CostSource, EstimateFlag: sl.EstimateFlag, EstimateReason: sl.EstimateReason,
				})
				deps = append(deps, model.CostDependency{
					ConsumedItemID: child.ID,
					ConsumedLotID:  &lotID,
					ConsumedTxID:   &txID,
					Quantity:       sl.Quantity,
					UnitCost:       sl.UnitCost,
					CostShare:      decimal.NewFromInt(1),
				})
			}
		}

		unitCost := round(total.Div(result.ParentQty))
		lot, entry, err := s.book.produce(tx, produced{
			item: parent, qty: result.ParentQty, unitCost: unitCost,
			origin: model.LotAssembled, rollup: roll,
		}, meta)
		if err != nil {
			return err
		}
		for i := range deps {
			deps[i].ProducedLotID = lot.ID
			deps[i].ProducedTxID = entry.ID
			deps[i].CreatedBy = in.Actor
		}
		if err := s.repos.Dependencies.CreateBatch(tx, deps); err != nil {
			return err
		}

		result.TotalCost = total
		result.Produced = []ProducedLine{producedLine(parent, lot, entry)}
		return nil
	})
	if err != nil {
		logger.LogError(s.env.Log, "assembly", "Assemble", "assembly rolled back", in, err)
		return nil, err
	}

	s.announce(in, result)
	return result, nil
}

// Disassemble consumes parent stock and recovers each physical child at
// parentQty × ratio × (1 − loss). The consumed parent cost is split across
// the recovered children in proportion to their ratios; overhead edges
// recover nothing and take no share.
func (s *assemblyService) Disassemble(ctx context.Context, in AssembleInput) (*AssemblyResult, error) {
	in.ParentQty = round(in.ParentQty)
	if err := validate(&in); err != nil {
		return nil, err
	}
	edges, keys, err := s.definition(ctx, in)
	if err != nil {
		return nil, err
	}

	result := &AssemblyResult{Operation: OpDisassemble, ParentItemID: in.ParentItemID, ParentQty: in.ParentQty}
	err = s.env.atomically(ctx, keys, func(tx *gorm.DB) error {
		parent, err := s.book.item(tx, in.ParentItemID)
		if err != nil {
			return err
		}
		if !parent.IsTracked {
			return fmt.Errorf("%w: %s", ErrItemNotTracked, parent.Code)
		}
		items, err := s.children(tx, edges)
		if err != nil {
			return err
		}

		var physical []model.Assembly
		ratioSum := decimal.Zero
		for _, e := range edges {
			if isOverhead(e, items[e.ChildItemID]) {
				continue
			}
			physical = append(physical, e)
			ratioSum = ratioSum.Add(e.Ratio)
		}
		if len(physical) == 0 || !ratioSum.IsPositive() {
			return fmt.Errorf("%w: %s has no recoverable children", ErrNoAssemblyDefinition, parent.Code)
		}

		meta := entryMeta{reason: in.Reason, actor: in.Actor, at: s.env.now()}
		slices, err := s.book.consume(tx, parent, result.ParentQty, meta)
		if err != nil {
			return err
		}
		roll := newRollup()
		for _, sl := range slices {
			lotID, txID := sl.LotID, sl.TransactionID
			result.TotalCost = result.TotalCost.Add(sl.ExtendedCost)
			roll.add(sl.CostSource, sl.EstimateFlag, sl.EstimateReason)
			result.Consumed = append(result.Consumed, ConsumedLine{
				ItemID: parent.ID, ItemCode: parent.Code,
				LotID: &lotID, LotCode: sl.LotCode, TransactionID: &txID,
				Quantity: sl.Quantity, UnitCost: sl.UnitCost, ExtendedCost: sl.ExtendedCost,
				CostSource: sl.CostSource, EstimateFlag: sl.EstimateFlag, EstimateReason: sl.EstimateReason,
			})
		}

		shares := apportion(physical, ratioSum)
		var deps []model.CostDependency
		for i, e := range physical {
			child := items[e.ChildItemID]
			qty := round(result.ParentQty.Mul(e.RecoveredPerParent()))
			share := shares[i]

			childTotal := decimal.Zero
			for _, sl := range slices {
				childTotal = childTotal.Add(contribution(sl.Quantity, sl.UnitCost, share))
			}
			unitCost := decimal.Zero
			if qty.IsPositive() {
				unitCost = round(childTotal.Div(qty))
			}

			lot, entry, err := s.book.produce(tx, produced{
				item: child, qty: qty, unitCost: unitCost,
				origin: model.LotDisassembled, rollup: roll,
			}, meta)
			if err != nil {
				return err
			}
			result.Produced = append(result.Produced, producedLine(child, lot, entry))

			for _, sl := range slices {
				lotID, txID := sl.LotID, sl.TransactionID
				dep := model.CostDependency{
					ConsumedItemID: parent.ID,
					ConsumedLotID:  &lotID,
					ConsumedTxID:   &txID,
					ProducedLotID:  lot.ID,
					ProducedTxID:   entry.ID,
					Quantity:       sl.Quantity,
					UnitCost:       sl.UnitCost,
					CostShare:      share,
				}
				dep.CreatedBy = in.Actor
				deps = append(deps, dep)
			}
		}
		return s.repos.Dependencies.CreateBatch(tx, deps)
	})
	if err != nil {
		logger.LogError(s.env.Log, "assembly", "Disassemble", "disassembly rolled back", in, err)
		return nil, err
	}

	s.announce(in, result)
	return result, nil
}

// apportion returns each physical edge's share of the parent cost. Shares are
// rounded and the remainder goes to the edge with the largest ratio, so they
// sum to exactly one and replaying them reproduces the split.
func apportion(edges []model.Assembly, ratioSum decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(edges))
	largest := 0
	allotted := decimal.Zero
	for i, e := range edges {
		if e.Ratio.GreaterThan(edges[largest].Ratio) {
			largest = i
		}
		shares[i] = round(e.Ratio.Div(ratioSum))
		allotted = allotted.Add(shares[i])
	}
	shares[largest] = shares[largest].Add(decimal.NewFromInt(1).Sub(allotted))
	return shares
}

func producedLine(item *model.Item, lot *model.Lot, entry *model.Transaction) ProducedLine {
	return ProducedLine{
		ItemID:         item.ID,
		ItemCode:       item.Code,
		LotID:          lot.ID,
		LotCode:        lot.LotCode,
		TransactionID:  entry.ID,
		Quantity:       entry.Quantity,
		UnitCost:       entry.UnitCost,
		ExtendedCost:   entry.ExtendedCost,
		CostSource:     entry.CostSource,
		EstimateFlag:   entry.EstimateFlag,
		EstimateReason: entry.EstimateReason,
	}
}

func (s *assemblyService) announce(in AssembleInput, result *AssemblyResult) {
	action := "assembled"
	if result.Operation == OpDisassemble {
		action = "disassembled"
	}
	s.env.Log.WithFields(logrus.Fields{
		"module":    "assembly",
		"operation": result.Operation,
		"parent":    result.ParentItemID,
		"quantity":  result.ParentQty.String(),
		"cost":      result.TotalCost.String(),
	}).Info("production committed")

	lots := make([]string, 0, len(result.Produced))
	for _, p := range result.Produced {
		lots = append(lots, p.LotCode)
	}
	s.env.publish(ws.Event{
		Type:   "stock_update",
		Action: action,
		Actor:  in.Actor,
		Data: map[string]interface{}{
			"parent_item_id": result.ParentItemID,
			"quantity":       result.ParentQty,
			"total_cost":     result.TotalCost,
			"lots":           lots,
		},
		Message: fmt.Sprintf("%s %s %s", in.Actor, action, result.ParentQty),
	})
}
