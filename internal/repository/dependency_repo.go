package repository

import (
	"go-inventory-cost/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DependencyRepository indexes cost dependency edges both ways: by consumed lot
// for forward propagation and by produced lot for re-aggregation.
type DependencyRepository interface {
	CreateBatch(tx *gorm.DB, deps []model.CostDependency) error
	FindByConsumedLot(tx *gorm.DB, lotID uuid.UUID) ([]model.CostDependency, error)
	FindByProducedLot(tx *gorm.DB, lotID uuid.UUID) ([]model.CostDependency, error)
}

type dependencyRepo struct {
	db *gorm.DB
}

func NewDependencyRepo(db *gorm.DB) DependencyRepository {
	return &dependencyRepo{db}
}

func (r *dependencyRepo) CreateBatch(tx *gorm.DB, deps []model.CostDependency) error {
	if len(deps) == 0 {
		return nil
	}
	return pick(r.db, tx).Create(&deps).Error
}

func (r *dependencyRepo) FindByConsumedLot(tx *gorm.DB, lotID uuid.UUID) ([]model.CostDependency, error) {
	var deps []model.CostDependency
	err := pick(r.db, tx).Where("consumed_lot_id = ?", lotID).Find(&deps).Error
	return deps, err
}

func (r *dependencyRepo) FindByProducedLot(tx *gorm.DB, lotID uuid.UUID) ([]model.CostDependency, error) {
	var deps []model.CostDependency
	err := pick(r.db, tx).Where("produced_lot_id = ?", lotID).Find(&deps).Error
	return deps, err
}
