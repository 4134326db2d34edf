package repository

import (
	"time"

	"go-inventory-cost/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransactionRepository interface {
	Create(tx *gorm.DB, t *model.Transaction) error
	FindByLot(tx *gorm.DB, lotID uuid.UUID) ([]model.Transaction, error)
	FindByItem(tx *gorm.DB, itemID uuid.UUID) ([]model.Transaction, error)
	// FindByItemUntil returns the item's entries with occurred_at <= asOf.
	FindByItemUntil(tx *gorm.DB, itemID uuid.UUID, asOf time.Time) ([]model.Transaction, error)
	FindAll(tx *gorm.DB) ([]model.Transaction, error)
	// FindBetween returns entries with from <= occurred_at < to.
	FindBetween(tx *gorm.DB, from, to time.Time) ([]model.Transaction, error)
	Count(tx *gorm.DB) (int64, error)
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) Create(tx *gorm.DB, t *model.Transaction) error {
	return pick(r.db, tx).Create(t).Error
}

func (r *transactionRepo) FindByLot(tx *gorm.DB, lotID uuid.UUID) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := pick(r.db, tx).Where("lot_id = ?", lotID).Order("occurred_at ASC").Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindByItem(tx *gorm.DB, itemID uuid.UUID) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := pick(r.db, tx).Where("item_id = ?", itemID).Order("occurred_at ASC").Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindByItemUntil(tx *gorm.DB, itemID uuid.UUID, asOf time.Time) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := pick(r.db, tx).
		Where("item_id = ? AND occurred_at <= ?", itemID, asOf).
		Order("occurred_at ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindAll(tx *gorm.DB) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := pick(r.db, tx).Order("occurred_at ASC").Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) FindBetween(tx *gorm.DB, from, to time.Time) ([]model.Transaction, error) {
	var transactions []model.Transaction
	err := pick(r.db, tx).
		Where("occurred_at >= ? AND occurred_at < ?", from, to).
		Order("occurred_at ASC").
		Find(&transactions).Error
	return transactions, err
}

func (r *transactionRepo) Count(tx *gorm.DB) (int64, error) {
	var count int64
	err := pick(r.db, tx).Model(&model.Transaction{}).Count(&count).Error
	return count, err
}
