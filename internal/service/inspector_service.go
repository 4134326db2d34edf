package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-inventory-cost/internal/model"
	"go-inventory-cost/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CostNode is one item in a cost breakdown. UnitCost is per unit of this item;
// ExtendedCost is UnitCost × QtyPerParent, the amount it adds to its parent.
type CostNode struct {
	ItemID          uuid.UUID        `json:"item_id"`
	ItemCode        string           `json:"item_code"`
	ItemName        string           `json:"item_name"`
	QtyPerParent    decimal.Decimal  `json:"qty_per_parent"`
	UnitCost        decimal.Decimal  `json:"unit_cost"`
	ExtendedCost    decimal.Decimal  `json:"extended_cost"`
	CostSource      model.CostSource `json:"cost_source"`
	EstimateFlag    bool             `json:"estimate_flag"`
	EstimateReasons []string         `json:"estimate_reasons,omitempty"`
	IsOverhead      bool             `json:"is_overhead"`
	Children        []*CostNode      `json:"children"`
}

type InspectorService interface {
	// Inspect builds the cost tree of an item as of asOf (now when nil).
	// It never writes and takes no locks.
	Inspect(ctx context.Context, itemID uuid.UUID, asOf *time.Time) (*CostNode, error)
}

type inspectorService struct {
	env      *Env
	repos    *repository.Set
	resolver *CostResolver
}

func NewInspectorService(env *Env, repos *repository.Set, resolver *CostResolver) InspectorService {
	return &inspectorService{env: env, repos: repos, resolver: resolver}
}

func (s *inspectorService) Inspect(ctx context.Context, itemID uuid.UUID, asOf *time.Time) (*CostNode, error) {
	at := s.env.now()
	if asOf != nil {
		at = asOf.UTC()
	}
	db := s.env.DB.WithContext(ctx)

	item, err := s.repos.Items.FindByID(db, itemID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, itemID)
	}
	if err != nil {
		return nil, err
	}
	w := walker{db: db, repos: s.repos, resolver: s.resolver, at: at}
	return w.visit(item, decimal.NewFromInt(1), false, nil)
}

type walker struct {
	db       *gorm.DB
	repos    *repository.Set
	resolver *CostResolver
	at       time.Time
}

// visit expands item depth-first. path holds the items on the way down from
// the root and is never shared between siblings.
func (w *walker) visit(item *model.Item, qtyPerParent decimal.Decimal, overhead bool, path []uuid.UUID) (*CostNode, error) {
	for _, id := range path {
		if id == item.ID {
			return nil, fmt.Errorf("%w: %s revisited below itself", ErrCircularBom, item.Code)
		}
	}
	path = append(path[:len(path):len(path)], item.ID)

	node := &CostNode{
		ItemID:       item.ID,
		ItemCode:     item.Code,
		ItemName:     item.Name,
		QtyPerParent: round(qtyPerParent),
		IsOverhead:   overhead,
		Children:     []*CostNode{},
	}

	edges, err := w.repos.Assemblies.FindEffective(w.db, item.ID, "", w.at)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		rc, err := w.leafCost(item)
		if err != nil {
			return nil, err
		}
		node.UnitCost = rc.UnitCost
		node.CostSource = rc.Source
		node.EstimateFlag = rc.EstimateFlag
		if rc.EstimateReason != "" {
			node.EstimateReasons = []string{rc.EstimateReason}
		}
		node.ExtendedCost = round(node.UnitCost.Mul(qtyPerParent))
		return node, nil
	}

	ids := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ChildItemID)
	}
	items, err := w.repos.Items.FindByIDs(w.db, ids)
	if err != nil {
		return nil, err
	}

	roll := newRollup()
	total := decimal.Zero
	for _, e := range edges {
		child, ok := items[e.ChildItemID]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownItem, e.ChildItemID)
		}
		sub, err := w.visit(child, e.QtyPerParent(), isOverhead(e, child), path)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, sub)
		total = total.Add(sub.ExtendedCost)
		for _, reason := range sub.EstimateReasons {
			roll.add(sub.CostSource, sub.EstimateFlag, reason)
		}
		if len(sub.EstimateReasons) == 0 {
			roll.add(sub.CostSource, sub.EstimateFlag, "")
		}
	}

	node.UnitCost = round(total)
	node.ExtendedCost = round(node.UnitCost.Mul(qtyPerParent))
	node.CostSource = roll.source
	node.EstimateFlag = roll.estimate
	node.EstimateReasons = roll.reasons
	return node, nil
}

// leafCost prices an item with no BOM from its oldest lot on hand at the
// inspection time, falling back to standard and estimated costs. On-hand is
// read from the transaction log, so a lot used up since still counts.
func (w *walker) leafCost(item *model.Item) (ResolvedCost, error) {
	var lot *model.Lot
	if item.IsTracked {
		found, err := w.onHandAt(item.ID)
		if err != nil {
			return ResolvedCost{}, err
		}
		lot = found
	}
	return w.resolver.Resolve(item, lot)
}

func (w *walker) onHandAt(itemID uuid.UUID) (*model.Lot, error) {
	lots, err := w.repos.Lots.FindReceivedBy(w.db, itemID, w.at)
	if err != nil || len(lots) == 0 {
		return nil, err
	}
	entries, err := w.repos.Transactions.FindByItemUntil(w.db, itemID, w.at)
	if err != nil {
		return nil, err
	}
	held := make(map[uuid.UUID]decimal.Decimal, len(lots))
	for _, e := range entries {
		held[e.LotID] = held[e.LotID].Add(e.Quantity)
	}
	for i := range lots {
		if held[lots[i].ID].IsPositive() {
			return &lots[i], nil
		}
	}
	return nil, nil
}
