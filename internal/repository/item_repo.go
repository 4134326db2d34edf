package repository

import (
	"go-inventory-cost/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ItemRepository interface {
	Create(tx *gorm.DB, item *model.Item) error
	FindAll(tx *gorm.DB) ([]model.Item, error)
	FindByID(tx *gorm.DB, id uuid.UUID) (*model.Item, error)
	FindByIDs(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*model.Item, error)
	FindByCode(tx *gorm.DB, code string) (*model.Item, error)
	Update(tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error
}

type itemRepo struct {
	db *gorm.DB
}

func NewItemRepo(db *gorm.DB) ItemRepository {
	return &itemRepo{db}
}

func (r *itemRepo) Create(tx *gorm.DB, item *model.Item) error {
	return pick(r.db, tx).Create(item).Error
}

func (r *itemRepo) FindAll(tx *gorm.DB) ([]model.Item, error) {
	var items []model.Item
	err := pick(r.db, tx).Order("code ASC").Find(&items).Error
	return items, err
}

func (r *itemRepo) FindByID(tx *gorm.DB, id uuid.UUID) (*model.Item, error) {
	var item model.Item
	if err := pick(r.db, tx).First(&item, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (r *itemRepo) FindByIDs(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*model.Item, error) {
	var items []model.Item
	if err := pick(r.db, tx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*model.Item, len(items))
	for i := range items {
		byID[items[i].ID] = &items[i]
	}
	return byID, nil
}

func (r *itemRepo) FindByCode(tx *gorm.DB, code string) (*model.Item, error) {
	var item model.Item
	if err := pick(r.db, tx).First(&item, "code = ?", code).Error; err != nil {
		return nil, notFound(err)
	}
	return &item, nil
}

func (r *itemRepo) Update(tx *gorm.DB, id uuid.UUID, fields map[string]interface{}) error {
	return pick(r.db, tx).Model(&model.Item{}).Where("id = ?", id).Updates(fields).Error
}
