package service

import (
	"fmt"

	"go-inventory-cost/internal/model"

	"github.com/shopspring/decimal"
)

// ResolvedCost is a unit cost together with where it came from.
type ResolvedCost struct {
	UnitCost       decimal.Decimal  `json:"unit_cost"`
	Source         model.CostSource `json:"cost_source"`
	EstimateFlag   bool             `json:"estimate_flag"`
	EstimateReason string           `json:"estimate_reason,omitempty"`
}

// CostStrategy is one tier of the fallback chain. It reports false when it
// does not apply, letting the next tier try. lot may be nil.
type CostStrategy func(item *model.Item, lot *model.Lot) (ResolvedCost, bool)

// CostResolver tries its strategies in order; the first that applies wins.
type CostResolver struct {
	strategies []CostStrategy
}

// NewCostResolver builds a resolver over strategies, or over
// DefaultCostStrategies when none are given.
func NewCostResolver(strategies ...CostStrategy) *CostResolver {
	if len(strategies) == 0 {
		strategies = DefaultCostStrategies()
	}
	return &CostResolver{strategies: strategies}
}

// DefaultCostStrategies is lot actual, then standard, then estimated.
func DefaultCostStrategies() []CostStrategy {
	return []CostStrategy{LotActualCost, StandardCost, EstimatedCost}
}

// Resolve returns the first applicable cost or ErrNoCostAvailable. Callers must
// abort on that error; zero is never substituted.
func (r *CostResolver) Resolve(item *model.Item, lot *model.Lot) (ResolvedCost, error) {
	for _, strategy := range r.strategies {
		if rc, ok := strategy(item, lot); ok {
			return rc, nil
		}
	}
	return ResolvedCost{}, fmt.Errorf("%w for item %s", ErrNoCostAvailable, item.Code)
}

func LotActualCost(_ *model.Item, lot *model.Lot) (ResolvedCost, bool) {
	if lot == nil || !lot.CurrentUnitCost.Valid {
		return ResolvedCost{}, false
	}
	// A lot produced from estimated inputs keeps its estimate flag.
	return ResolvedCost{
		UnitCost:       lot.CurrentUnitCost.Decimal,
		Source:         model.CostFIFOActual,
		EstimateFlag:   lot.EstimateFlag,
		EstimateReason: lot.EstimateReason,
	}, true
}

func StandardCost(item *model.Item, _ *model.Lot) (ResolvedCost, bool) {
	if item == nil || !item.StandardCost.Valid {
		return ResolvedCost{}, false
	}
	return ResolvedCost{UnitCost: item.StandardCost.Decimal, Source: model.CostStandard}, true
}

func EstimatedCost(item *model.Item, _ *model.Lot) (ResolvedCost, bool) {
	if item == nil || !item.EstimatedCost.Valid {
		return ResolvedCost{}, false
	}
	return ResolvedCost{
		UnitCost:       item.EstimatedCost.Decimal,
		Source:         model.CostEstimated,
		EstimateFlag:   true,
		EstimateReason: item.EstimateReason,
	}, true
}
