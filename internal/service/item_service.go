package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-inventory-cost/internal/lock"
	"go-inventory-cost/internal/model"
	"go-inventory-cost/internal/repository"
	"go-inventory-cost/internal/ws"
	"go-inventory-cost/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateItemInput struct {
	Code         string              `json:"code" validate:"required,max=50"`
	Name         string              `json:"name" validate:"required,max=255"`
	Unit         string              `json:"unit" validate:"max=20"`
	IsTracked    bool                `json:"is_tracked"`
	StandardCost decimal.NullDecimal `json:"standard_cost"`
	Actor        string              `json:"-" validate:"required"`
}

type AssemblyEdgeInput struct {
	ChildItemID        uuid.UUID       `json:"child_item_id" validate:"uuid_required"`
	Ratio              decimal.Decimal `json:"ratio" validate:"gt=0"`
	LossFactor         decimal.Decimal `json:"loss_factor" validate:"gte=0,lt=1"`
	YieldFactor        decimal.Decimal `json:"yield_factor" validate:"gte=0"` // zero means 1
	IsEnergyOrOverhead bool            `json:"is_energy_or_overhead"`
}

type DefineAssemblyInput struct {
	ParentItemID  uuid.UUID           `json:"parent_item_id" validate:"uuid_required"`
	Version       string              `json:"version" validate:"required,max=32"`
	IsPrimary     bool                `json:"is_primary"`
	EffectiveFrom *time.Time          `json:"effective_from"`
	EffectiveTo   *time.Time          `json:"effective_to"`
	Edges         []AssemblyEdgeInput `json:"edges" validate:"required,min=1,dive"`
	Actor         string              `json:"-" validate:"required"`
}

// ItemService is the item registry and BOM feed the engine reads from.
type ItemService interface {
	CreateItem(ctx context.Context, in CreateItemInput) (*model.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	SetStandardCost(ctx context.Context, id uuid.UUID, cost decimal.NullDecimal, actor string) (*model.Item, error)
	SetEstimate(ctx context.Context, id uuid.UUID, cost decimal.NullDecimal, reason, actor string) (*model.Item, error)
	DefineAssembly(ctx context.Context, in DefineAssemblyInput) ([]model.Assembly, error)
}

type itemService struct {
	env   *Env
	repos *repository.Set
}

func NewItemService(env *Env, repos *repository.Set) ItemService {
	return &itemService{env: env, repos: repos}
}

func (s *itemService) CreateItem(ctx context.Context, in CreateItemInput) (*model.Item, error) {
	// 1. Validate
	if err := validate(&in); err != nil {
		return nil, err
	}
	if in.StandardCost.Valid && in.StandardCost.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: standard_cost must not be negative", ErrInvalidInput)
	}

	db := s.env.DB.WithContext(ctx)

	// 2. Code must be unique
	existing, err := s.repos.Items.FindByCode(db, in.Code)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: item code %s already exists", ErrInvalidInput, in.Code)
	}

	// 3. Save
	item := &model.Item{
		Code:      in.Code,
		Name:      in.Name,
		Unit:      in.Unit,
		IsTracked: in.IsTracked,
	}
	if in.StandardCost.Valid {
		item.StandardCost = decimal.NewNullDecimal(round(in.StandardCost.Decimal))
	}
	item.CreatedBy = in.Actor
	item.UpdatedBy = in.Actor
	if err := s.repos.Items.Create(db, item); err != nil {
		logger.LogError(s.env.Log, "item", "CreateItem", "insert failed", in, err)
		return nil, err
	}

	s.env.publish(ws.Event{
		Type:    "item_update",
		Action:  "item_created",
		Actor:   in.Actor,
		Data:    map[string]interface{}{"id": item.ID, "code": item.Code, "name": item.Name},
		Message: fmt.Sprintf("%s created item '%s'", in.Actor, item.Name),
	})
	return item, nil
}

func (s *itemService) GetItem(ctx context.Context, id uuid.UUID) (*model.Item, error) {
	item, err := s.repos.Items.FindByID(s.env.DB.WithContext(ctx), id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownItem, id)
	}
	return item, err
}

func (s *itemService) ListItems(ctx context.Context) ([]model.Item, error) {
	return s.repos.Items.FindAll(s.env.DB.WithContext(ctx))
}

func (s *itemService) SetStandardCost(ctx context.Context, id uuid.UUID, cost decimal.NullDecimal, actor string) (*model.Item, error) {
	if cost.Valid && cost.Decimal.IsNegative() {
		return nil, fmt.Errorf("%w: standard_cost must not be negative", ErrInvalidInput)
	}
	if cost.Valid {
		cost.Decimal = round(cost.Decimal)
	}
	return s.update(ctx, id, map[string]interface{}{
		"standard_cost": cost,
		"updated_by":    actor,
	})
}

// SetEstimate records the audited fallback cost. A null cost clears it.
func (s *itemService) SetEstimate(ctx context.Context, id uuid.UUID, cost decimal.NullDecimal, reason, actor string) (*model.Item, error) {
	if actor == "" {
		return nil, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}
	fields := map[string]interface{}{"updated_by": actor}
	if cost.Valid {
		if cost.Decimal.IsNegative() {
			return nil, fmt.Errorf("%w: estimated_cost must not be negative", ErrInvalidInput)
		}
		if reason == "" {
			return nil, fmt.Errorf("%w: an estimate needs a reason", ErrInvalidInput)
		}
		now := s.env.now()
		fields["estimated_cost"] = decimal.NewNullDecimal(round(cost.Decimal))
		fields["estimate_reason"] = reason
		fields["estimated_by"] = actor
		fields["estimated_at"] = &now
	} else {
		fields["estimated_cost"] = cost
		fields["estimate_reason"] = ""
		fields["estimated_by"] = ""
		fields["estimated_at"] = nil
	}
	return s.update(ctx, id, fields)
}

func (s *itemService) update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*model.Item, error) {
	var item *model.Item
	err := s.env.atomically(ctx, []string{lock.ItemKey(id)}, func(tx *gorm.DB) error {
		if _, err := s.repos.Items.FindByID(tx, id); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownItem, id)
			}
			return err
		}
		if err := s.repos.Items.Update(tx, id, fields); err != nil {
			return err
		}
		var err error
		item, err = s.repos.Items.FindByID(tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// DefineAssembly stores an edge set for (parent, version), replacing any
// earlier set with the same version. A primary set demotes the previous one.
func (s *itemService) DefineAssembly(ctx context.Context, in DefineAssemblyInput) ([]model.Assembly, error) {
	if err := validate(&in); err != nil {
		return nil, err
	}
	if in.EffectiveFrom != nil && in.EffectiveTo != nil && !in.EffectiveTo.After(*in.EffectiveFrom) {
		return nil, fmt.Errorf("%w: effective_to must be after effective_from", ErrInvalidInput)
	}

	var edges []model.Assembly
	err := s.env.atomically(ctx, []string{lock.ItemKey(in.ParentItemID)}, func(tx *gorm.DB) error {
		if _, err := s.repos.Items.FindByID(tx, in.ParentItemID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: %s", ErrUnknownItem, in.ParentItemID)
			}
			return err
		}

		ids := make([]uuid.UUID, 0, len(in.Edges))
		for _, e := range in.Edges {
			if e.ChildItemID == in.ParentItemID {
				return fmt.Errorf("%w: item %s lists itself as a child", ErrCircularBom, in.ParentItemID)
			}
			ids = append(ids, e.ChildItemID)
		}
		children, err := s.repos.Items.FindByIDs(tx, ids)
		if err != nil {
			return err
		}

		for i, e := range in.Edges {
			if _, ok := children[e.ChildItemID]; !ok {
				return fmt.Errorf("%w: %s", ErrUnknownItem, e.ChildItemID)
			}
			yield := e.YieldFactor
			if yield.IsZero() {
				yield = decimal.NewFromInt(1)
			}
			edge := model.Assembly{
				ParentItemID:       in.ParentItemID,
				ChildItemID:        e.ChildItemID,
				Version:            in.Version,
				Ratio:              round(e.Ratio),
				LossFactor:         round(e.LossFactor),
				YieldFactor:        round(yield),
				IsEnergyOrOverhead: e.IsEnergyOrOverhead,
				IsPrimary:          in.IsPrimary,
				IsActive:           true,
				EffectiveFrom:      utcPtr(in.EffectiveFrom),
				EffectiveTo:        utcPtr(in.EffectiveTo),
				Sequence:           i + 1,
			}
			edge.CreatedBy = in.Actor
			edge.UpdatedBy = in.Actor
			edges = append(edges, edge)
		}

		if err := s.repos.Assemblies.DeactivateVersion(tx, in.ParentItemID, in.Version); err != nil {
			return err
		}
		if in.IsPrimary {
			if err := s.repos.Assemblies.DemotePrimary(tx, in.ParentItemID); err != nil {
				return err
			}
		}
		return s.repos.Assemblies.CreateSet(tx, edges)
	})
	if err != nil {
		logger.LogError(s.env.Log, "item", "DefineAssembly", "edge set rejected", in, err)
		return nil, err
	}
	return edges, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
