package repository

import (
	"time"

	"go-inventory-cost/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LotRepository interface {
	Create(tx *gorm.DB, lot *model.Lot) error
	FindByID(tx *gorm.DB, id uuid.UUID) (*model.Lot, error)
	FindByIDs(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*model.Lot, error)
	FindByItem(tx *gorm.DB, itemID uuid.UUID) ([]model.Lot, error)
	FindAll(tx *gorm.DB) ([]model.Lot, error)
	FindActiveFIFO(tx *gorm.DB, itemID uuid.UUID) ([]model.Lot, error)
	// FindReceivedBy returns every lot of the item received at or before asOf,
	// oldest first, whether or not it is still on hand.
	FindReceivedBy(tx *gorm.DB, itemID uuid.UUID, asOf time.Time) ([]model.Lot, error)
	CodeExists(tx *gorm.DB, itemID uuid.UUID, code string) (bool, error)
	CountByItem(tx *gorm.DB, itemID uuid.UUID) (int64, error)
	UpdateQuantity(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) error
	UpdateCosts(tx *gorm.DB, id uuid.UUID, original, current decimal.NullDecimal) error
}

type lotRepo struct {
	db *gorm.DB
}

func NewLotRepo(db *gorm.DB) LotRepository {
	return &lotRepo{db}
}

func (r *lotRepo) Create(tx *gorm.DB, lot *model.Lot) error {
	return pick(r.db, tx).Create(lot).Error
}

func (r *lotRepo) FindByID(tx *gorm.DB, id uuid.UUID) (*model.Lot, error) {
	var lot model.Lot
	if err := pick(r.db, tx).First(&lot, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &lot, nil
}

func (r *lotRepo) FindByIDs(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*model.Lot, error) {
	byID := make(map[uuid.UUID]*model.Lot, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	var lots []model.Lot
	if err := pick(r.db, tx).Where("id IN ?", ids).Find(&lots).Error; err != nil {
		return nil, err
	}
	for i := range lots {
		byID[lots[i].ID] = &lots[i]
	}
	return byID, nil
}

func (r *lotRepo) FindByItem(tx *gorm.DB, itemID uuid.UUID) ([]model.Lot, error) {
	var lots []model.Lot
	err := pick(r.db, tx).
		Where("item_id = ?", itemID).
		Order("received_at ASC, lot_code ASC").
		Find(&lots).Error
	return lots, err
}

func (r *lotRepo) FindAll(tx *gorm.DB) ([]model.Lot, error) {
	var lots []model.Lot
	err := pick(r.db, tx).Order("item_id ASC, received_at ASC, lot_code ASC").Find(&lots).Error
	return lots, err
}

// FindActiveFIFO returns the item's active lots oldest first; ties on receipt
// time fall back to lot code so consumption order is deterministic.
func (r *lotRepo) FindActiveFIFO(tx *gorm.DB, itemID uuid.UUID) ([]model.Lot, error) {
	var lots []model.Lot
	err := pick(r.db, tx).
		Where("item_id = ? AND is_active = ?", itemID, true).
		Order("received_at ASC, lot_code ASC").
		Find(&lots).Error
	return lots, err
}

func (r *lotRepo) FindReceivedBy(tx *gorm.DB, itemID uuid.UUID, asOf time.Time) ([]model.Lot, error) {
	var lots []model.Lot
	err := pick(r.db, tx).
		Where("item_id = ? AND received_at <= ?", itemID, asOf).
		Order("received_at ASC, lot_code ASC").
		Find(&lots).Error
	return lots, err
}

func (r *lotRepo) CodeExists(tx *gorm.DB, itemID uuid.UUID, code string) (bool, error) {
	var count int64
	err := pick(r.db, tx).Model(&model.Lot{}).
		Where("item_id = ? AND lot_code = ?", itemID, code).
		Count(&count).Error
	return count > 0, err
}

func (r *lotRepo) CountByItem(tx *gorm.DB, itemID uuid.UUID) (int64, error) {
	var count int64
	err := pick(r.db, tx).Model(&model.Lot{}).Where("item_id = ?", itemID).Count(&count).Error
	return count, err
}

// UpdateQuantity stores the lot's new projection; a lot at zero goes inactive.
func (r *lotRepo) UpdateQuantity(tx *gorm.DB, id uuid.UUID, qty decimal.Decimal) error {
	return pick(r.db, tx).Model(&model.Lot{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quantity":  qty,
			"is_active": qty.IsPositive(),
		}).Error
}

func (r *lotRepo) UpdateCosts(tx *gorm.DB, id uuid.UUID, original, current decimal.NullDecimal) error {
	return pick(r.db, tx).Model(&model.Lot{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"original_unit_cost": original,
			"current_unit_cost":  current,
		}).Error
}
