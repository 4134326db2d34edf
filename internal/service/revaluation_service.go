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

type RevalueInput struct {
	LotID       uuid.UUID       `json:"lot_id" validate:"uuid_required"`
	NewUnitCost decimal.Decimal `json:"new_unit_cost" validate:"gte=0"`
	Reason      string          `json:"reason" validate:"required"`
	Actor       string          `json:"-" validate:"required"`
	Propagate   bool            `json:"propagate"`
}

type RevaluationResult struct {
	Direct     model.Revaluation   `json:"direct"`
	Propagated []model.Revaluation `json:"propagated"`
}

type RevaluationService interface {
	// Revalue moves a lot's current unit cost and, when asked, re-prices every
	// lot produced from it. If propagation fails the direct change stays
	// committed and a *PropagationError is returned with the partial result.
	Revalue(ctx context.Context, in RevalueInput) (*RevaluationResult, error)
	History(ctx context.Context, lotID uuid.UUID) ([]model.Revaluation, error)
}

type revaluationService struct {
	env   *Env
	repos *repository.Set
	book  *book
}

func NewRevaluationService(env *Env, repos *repository.Set, resolver *CostResolver) RevaluationService {
	return &revaluationService{
		env:   env,
		repos: repos,
		book:  &book{repos: repos, resolver: resolver},
	}
}

func (s *revaluationService) Revalue(ctx context.Context, in RevalueInput) (*RevaluationResult, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	newCost := round(in.NewUnitCost)

	root, err := s.book.lot(s.env.DB.WithContext(ctx), in.LotID)
	if err != nil {
		return nil, err
	}

	result := &RevaluationResult{Propagated: []model.Revaluation{}}
	keys := []string{lock.ItemKey(root.ItemID), lock.LotKey(root.ID)}
	err = s.env.atomically(ctx, keys, func(tx *gorm.DB) error {
		lot, err := s.book.lot(tx, in.LotID)
		if err != nil {
			return err
		}
		prior, err := s.priorCost(tx, lot)
		if err != nil {
			return err
		}
		rv, err := s.apply(tx, lot, prior, newCost, in.Reason, in.Actor, nil)
		if err != nil {
			return err
		}
		result.Direct = *rv
		return nil
	})
	if err != nil {
		logger.LogError(s.env.Log, "revaluation", "Revalue", "direct revaluation failed", in, err)
		return nil, err
	}
	s.announce(in.Actor, result.Direct)

	if !in.Propagate {
		return result, nil
	}
	if err := s.propagate(ctx, root.ID, in, result); err != nil {
		logger.LogError(s.env.Log, "revaluation", "Revalue", "propagation stopped", in, err)
		return result, err
	}
	return result, nil
}

// priorCost is the lot's recorded cost. A lot received without one is still
// carried at whatever its RECEIPT entry booked, whatever the standard or
// estimate says today.
func (s *revaluationService) priorCost(tx *gorm.DB, lot *model.Lot) (decimal.Decimal, error) {
	if recorded, ok := lot.RecordedCost(); ok {
		return recorded, nil
	}
	entries, err := s.repos.Transactions.FindByLot(tx, lot.ID)
	if err != nil {
		return decimal.Zero, err
	}
	for _, e := range entries {
		if e.Type == model.TxReceipt || e.Type == model.TxProduce {
			return e.UnitCost, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: lot %s has no booked cost", ErrNoCostAvailable, lot.LotCode)
}

// apply sets the lot's current cost and appends the audit row. A lot that
// never had an original cost takes the prior one.
func (s *revaluationService) apply(tx *gorm.DB, lot *model.Lot, prior, newCost decimal.Decimal, reason, actor string, source *uuid.UUID) (*model.Revaluation, error) {
	original := lot.OriginalUnitCost
	if !original.Valid {
		original = decimal.NewNullDecimal(prior)
	}
	if err := s.repos.Lots.UpdateCosts(tx, lot.ID, original, decimal.NewNullDecimal(newCost)); err != nil {
		return nil, err
	}

	lotID := lot.ID
	rv := &model.Revaluation{
		ItemID:                 lot.ItemID,
		LotID:                  &lotID,
		OldUnitCost:            prior,
		NewUnitCost:            newCost,
		DeltaExtendedCost:      round(newCost.Sub(prior).Mul(lot.Quantity)),
		Reason:                 reason,
		Actor:                  actor,
		PropagatedToAssemblies: source != nil,
		SourceLotID:            source,
	}
	rv.CreatedBy = actor
	if err := s.repos.Revaluations.Create(tx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

// propagate re-prices the downstream closure of root in topological order.
// Each lot is its own step with its own locks and transaction, so a failure
// leaves earlier steps committed.
func (s *revaluationService) propagate(ctx context.Context, rootID uuid.UUID, in RevalueInput, result *RevaluationResult) error {
	order, err := s.downstream(ctx, rootID)
	if err != nil {
		return &PropagationError{RootLotID: rootID, FailedLotID: rootID, Err: err}
	}

	var updated []uuid.UUID
	reason := fmt.Sprintf("propagated from lot %s: %s", rootID, in.Reason)
	for _, lotID := range order {
		rv, err := s.reprice(ctx, lotID, rootID, reason, in.Actor)
		if err != nil {
			return &PropagationError{RootLotID: rootID, FailedLotID: lotID, Updated: updated, Err: err}
		}
		if rv == nil {
			continue
		}
		updated = append(updated, lotID)
		result.Propagated = append(result.Propagated, *rv)
		s.announce(in.Actor, *rv)
	}

	s.env.Log.WithFields(logrus.Fields{
		"module":  "revaluation",
		"root":    rootID,
		"visited": len(order),
		"updated": len(updated),
	}).Info("propagation finished")
	return nil
}

// downstream lists every lot reachable from root through cost dependencies,
// each after all of its reachable inputs.
func (s *revaluationService) downstream(ctx context.Context, rootID uuid.UUID) ([]uuid.UUID, error) {
	db := s.env.DB.WithContext(ctx)
	out := map[uuid.UUID][]uuid.UUID{}
	indegree := map[uuid.UUID]int{}
	seen := map[uuid.UUID]bool{rootID: true}

	frontier := []uuid.UUID{rootID}
	for len(frontier) > 0 {
		lotID := frontier[0]
		frontier = frontier[1:]

		deps, err := s.repos.Dependencies.FindByConsumedLot(db, lotID)
		if err != nil {
			return nil, err
		}
		linked := map[uuid.UUID]bool{}
		for _, d := range deps {
			if linked[d.ProducedLotID] {
				continue
			}
			linked[d.ProducedLotID] = true
			out[lotID] = append(out[lotID], d.ProducedLotID)
			indegree[d.ProducedLotID]++
			if !seen[d.ProducedLotID] {
				seen[d.ProducedLotID] = true
				frontier = append(frontier, d.ProducedLotID)
			}
		}
	}

	var order []uuid.UUID
	queue := []uuid.UUID{rootID}
	for len(queue) > 0 {
		lotID := queue[0]
		queue = queue[1:]
		if lotID != rootID {
			order = append(order, lotID)
		}
		for _, next := range out[lotID] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if len(order) != len(seen)-1 {
		return nil, fmt.Errorf("cost dependency cycle below lot %s", rootID)
	}
	return order, nil
}

// reprice recomputes one produced lot from the current costs of its inputs.
// It returns nil when the cost does not change.
func (s *revaluationService) reprice(ctx context.Context, lotID, rootID uuid.UUID, reason, actor string) (*model.Revaluation, error) {
	db := s.env.DB.WithContext(ctx)
	lot, err := s.book.lot(db, lotID)
	if err != nil {
		return nil, err
	}
	deps, err := s.repos.Dependencies.FindByProducedLot(db, lotID)
	if err != nil {
		return nil, err
	}
	keys := []string{lock.ItemKey(lot.ItemID), lock.LotKey(lot.ID)}
	for _, d := range deps {
		if d.ConsumedLotID != nil {
			keys = append(keys, lock.LotKey(*d.ConsumedLotID))
		}
	}

	var rv *model.Revaluation
	err = s.env.atomically(ctx, keys, func(tx *gorm.DB) error {
		lot, err := s.book.lot(tx, lotID)
		if err != nil {
			return err
		}
		if !lot.InitialQuantity.IsPositive() {
			return nil
		}
		deps, err := s.repos.Dependencies.FindByProducedLot(tx, lotID)
		if err != nil {
			return err
		}
		var inputIDs []uuid.UUID
		for _, d := range deps {
			if d.ConsumedLotID != nil {
				inputIDs = append(inputIDs, *d.ConsumedLotID)
			}
		}
		inputs, err := s.repos.Lots.FindByIDs(tx, inputIDs)
		if err != nil {
			return err
		}

		total := decimal.Zero
		for _, d := range deps {
			cost := d.UnitCost
			if d.ConsumedLotID != nil {
				input, ok := inputs[*d.ConsumedLotID]
				if !ok {
					return fmt.Errorf("%w: %s", ErrUnknownLot, *d.ConsumedLotID)
				}
				if recorded, ok := input.RecordedCost(); ok {
					cost = recorded
				}
			}
			total = total.Add(contribution(d.Quantity, cost, d.CostShare))
		}
		newCost := round(total.Div(lot.InitialQuantity))

		prior, err := s.priorCost(tx, lot)
		if err != nil {
			return err
		}
		if newCost.Equal(prior) {
			return nil
		}
		root := rootID
		rv, err = s.apply(tx, lot, prior, newCost, reason, actor, &root)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rv, nil
}

func (s *revaluationService) History(ctx context.Context, lotID uuid.UUID) ([]model.Revaluation, error) {
	db := s.env.DB.WithContext(ctx)
	if _, err := s.book.lot(db, lotID); err != nil {
		return nil, err
	}
	return s.repos.Revaluations.FindByLot(db, lotID)
}

func (s *revaluationService) announce(actor string, rv model.Revaluation) {
	s.env.publish(ws.Event{
		Type:   "cost_update",
		Action: "lot_revalued",
		Actor:  actor,
		Data: map[string]interface{}{
			"item_id":    rv.ItemID,
			"lot_id":     rv.LotID,
			"old_cost":   rv.OldUnitCost,
			"new_cost":   rv.NewUnitCost,
			"delta":      rv.DeltaExtendedCost,
			"propagated": rv.PropagatedToAssemblies,
		},
		Message: fmt.Sprintf("%s revalued lot %s from %s to %s", actor, rv.LotID, rv.OldUnitCost, rv.NewUnitCost),
	})
}
