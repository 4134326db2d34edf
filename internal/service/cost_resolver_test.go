package service

import (
	"errors"
	"testing"

	"go-inventory-cost/internal/model"

	"github.com/shopspring/decimal"
)

func TestCostResolverPriority(t *testing.T) {
	costed := &model.Lot{CurrentUnitCost: cost("15")}
	estimatedLot := &model.Lot{CurrentUnitCost: cost("9"), EstimateFlag: true, EstimateReason: "rolled from quote"}
	uncosted := &model.Lot{}

	full := &model.Item{Code: "FULL", StandardCost: cost("12"), EstimatedCost: cost("11"), EstimateReason: "quote"}
	estOnly := &model.Item{Code: "EST", EstimatedCost: cost("11"), EstimateReason: "quote"}
	bare := &model.Item{Code: "BARE"}

	cases := []struct {
		name     string
		item     *model.Item
		lot      *model.Lot
		want     string
		source   model.CostSource
		estimate bool
		err      error
	}{
		{"lot actual wins", full, costed, "15", model.CostFIFOActual, false, nil},
		{"estimated lot keeps flag", full, estimatedLot, "9", model.CostFIFOActual, true, nil},
		{"uncosted lot falls to standard", full, uncosted, "12", model.CostStandard, false, nil},
		{"no lot uses standard", full, nil, "12", model.CostStandard, false, nil},
		{"estimate last", estOnly, nil, "11", model.CostEstimated, true, nil},
		{"nothing", bare, uncosted, "", "", false, ErrNoCostAvailable},
	}
	r := NewCostResolver()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rc, err := r.Resolve(tc.item, tc.lot)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("err = %v, want %v", err, tc.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			assertDecimal(t, "unit", rc.UnitCost, tc.want)
			if rc.Source != tc.source || rc.EstimateFlag != tc.estimate {
				t.Fatalf("got %s/%v, want %s/%v", rc.Source, rc.EstimateFlag, tc.source, tc.estimate)
			}
		})
	}
}

func TestCostResolverAcceptsNewTier(t *testing.T) {
	lastPurchase := func(item *model.Item, _ *model.Lot) (ResolvedCost, bool) {
		if item.Code != "BARE" {
			return ResolvedCost{}, false
		}
		return ResolvedCost{UnitCost: decimal.NewFromInt(7), Source: model.CostStandard}, true
	}
	r := NewCostResolver(append(DefaultCostStrategies(), lastPurchase)...)

	rc, err := r.Resolve(&model.Item{Code: "BARE"}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assertDecimal(t, "unit", rc.UnitCost, "7")
}
