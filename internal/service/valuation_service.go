package service

import (
	"context"
	"time"

	"go-inventory-cost/internal/model"
	"go-inventory-cost/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ItemValuation is the on-hand value of one item at its lots' recorded costs.
type ItemValuation struct {
	ItemID        uuid.UUID       `json:"item_id"`
	ItemCode      string          `json:"item_code"`
	OnHand        decimal.Decimal `json:"on_hand"`
	Value         decimal.Decimal `json:"value"`
	ActiveLots    int             `json:"active_lots"`
	EstimatedLots int             `json:"estimated_lots"`
	UncostedLots  int             `json:"uncosted_lots"`
}

type ValuationSummary struct {
	Items          []ItemValuation `json:"items"`
	TotalValue     decimal.Decimal `json:"total_value"`
	EstimatedValue decimal.Decimal `json:"estimated_value"`
}

// MovementDay totals signed quantity and cost per transaction type for one
// UTC day.
type MovementDay struct {
	Date         string          `json:"date"`
	Received     decimal.Decimal `json:"received"`
	Issued       decimal.Decimal `json:"issued"`
	Produced     decimal.Decimal `json:"produced"`
	ReceivedCost decimal.Decimal `json:"received_cost"`
	IssuedCost   decimal.Decimal `json:"issued_cost"`
	ProducedCost decimal.Decimal `json:"produced_cost"`
}

type ValuationService interface {
	Summary(ctx context.Context) (*ValuationSummary, error)
	Movement(ctx context.Context, days int) ([]MovementDay, error)
}

type valuationService struct {
	env      *Env
	repos    *repository.Set
	resolver *CostResolver
}

func NewValuationService(env *Env, repos *repository.Set, resolver *CostResolver) ValuationService {
	return &valuationService{env: env, repos: repos, resolver: resolver}
}

// Summary values every active lot. A lot without a recorded cost is valued
// through the resolver; one nothing can price counts as uncosted.
func (s *valuationService) Summary(ctx context.Context) (*ValuationSummary, error) {
	db := s.env.DB.WithContext(ctx)
	items, err := s.repos.Items.FindAll(db)
	if err != nil {
		return nil, err
	}

	out := &ValuationSummary{Items: []ItemValuation{}}
	for i := range items {
		item := &items[i]
		if !item.IsTracked {
			continue
		}
		lots, err := s.repos.Lots.FindActiveFIFO(db, item.ID)
		if err != nil {
			return nil, err
		}
		row := ItemValuation{ItemID: item.ID, ItemCode: item.Code}
		for j := range lots {
			lot := &lots[j]
			row.ActiveLots++
			row.OnHand = row.OnHand.Add(lot.Quantity)

			rc, err := s.resolver.Resolve(item, lot)
			if err != nil {
				row.UncostedLots++
				continue
			}
			value := round(lot.Quantity.Mul(rc.UnitCost))
			row.Value = row.Value.Add(value)
			if rc.EstimateFlag {
				row.EstimatedLots++
				out.EstimatedValue = out.EstimatedValue.Add(value)
			}
		}
		out.TotalValue = out.TotalValue.Add(row.Value)
		out.Items = append(out.Items, row)
	}
	return out, nil
}

func (s *valuationService) Movement(ctx context.Context, days int) ([]MovementDay, error) {
	if days <= 0 {
		days = 7
	}
	end := s.env.now()
	start := end.AddDate(0, 0, -days)

	entries, err := s.repos.Transactions.FindBetween(s.env.DB.WithContext(ctx), start, end.Add(time.Nanosecond))
	if err != nil {
		return nil, err
	}

	var out []MovementDay
	index := map[string]int{}
	for _, e := range entries {
		date := e.OccurredAt.UTC().Format("2006-01-02")
		i, ok := index[date]
		if !ok {
			i = len(out)
			index[date] = i
			out = append(out, MovementDay{Date: date})
		}
		day := &out[i]
		switch e.Type {
		case model.TxReceipt:
			day.Received = day.Received.Add(e.Quantity)
			day.ReceivedCost = day.ReceivedCost.Add(e.ExtendedCost)
		case model.TxIssue:
			day.Issued = day.Issued.Add(e.Quantity.Neg())
			day.IssuedCost = day.IssuedCost.Add(e.ExtendedCost.Neg())
		case model.TxProduce:
			day.Produced = day.Produced.Add(e.Quantity)
			day.ProducedCost = day.ProducedCost.Add(e.ExtendedCost)
		}
	}
	return out, nil
}
