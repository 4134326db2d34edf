package repository

import (
	"go-inventory-cost/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RevaluationRepository interface {
	Create(tx *gorm.DB, rv *model.Revaluation) error
	FindByLot(tx *gorm.DB, lotID uuid.UUID) ([]model.Revaluation, error)
	FindBySource(tx *gorm.DB, sourceLotID uuid.UUID) ([]model.Revaluation, error)
}

type revaluationRepo struct {
	db *gorm.DB
}

func NewRevaluationRepo(db *gorm.DB) RevaluationRepository {
	return &revaluationRepo{db}
}

func (r *revaluationRepo) Create(tx *gorm.DB, rv *model.Revaluation) error {
	return pick(r.db, tx).Create(rv).Error
}

func (r *revaluationRepo) FindByLot(tx *gorm.DB, lotID uuid.UUID) ([]model.Revaluation, error) {
	var rows []model.Revaluation
	err := pick(r.db, tx).Where("lot_id = ?", lotID).Order("created_at ASC").Find(&rows).Error
	return rows, err
}

func (r *revaluationRepo) FindBySource(tx *gorm.DB, sourceLotID uuid.UUID) ([]model.Revaluation, error) {
	var rows []model.Revaluation
	err := pick(r.db, tx).Where("source_lot_id = ?", sourceLotID).Order("created_at ASC").Find(&rows).Error
	return rows, err
}
