package repository

import (
	"time"

	"go-inventory-cost/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssemblyRepository interface {
	CreateSet(tx *gorm.DB, edges []model.Assembly) error
	// FindEffective returns the active edges for parent in force at asOf.
	// An empty version selects the primary set.
	FindEffective(tx *gorm.DB, parentID uuid.UUID, version string, asOf time.Time) ([]model.Assembly, error)
	DemotePrimary(tx *gorm.DB, parentID uuid.UUID) error
	DeactivateVersion(tx *gorm.DB, parentID uuid.UUID, version string) error
}

type assemblyRepo struct {
	db *gorm.DB
}

func NewAssemblyRepo(db *gorm.DB) AssemblyRepository {
	return &assemblyRepo{db}
}

func (r *assemblyRepo) CreateSet(tx *gorm.DB, edges []model.Assembly) error {
	if len(edges) == 0 {
		return nil
	}
	return pick(r.db, tx).Create(&edges).Error
}

func (r *assemblyRepo) FindEffective(tx *gorm.DB, parentID uuid.UUID, version string, asOf time.Time) ([]model.Assembly, error) {
	q := pick(r.db, tx).
		Where("parent_item_id = ? AND is_active = ?", parentID, true).
		Where("(effective_from IS NULL OR effective_from <= ?)", asOf).
		Where("(effective_to IS NULL OR effective_to > ?)", asOf)
	if version == "" {
		q = q.Where("is_primary = ?", true)
	} else {
		q = q.Where("version = ?", version)
	}

	var edges []model.Assembly
	err := q.Order("sequence ASC").Find(&edges).Error
	return edges, err
}

func (r *assemblyRepo) DemotePrimary(tx *gorm.DB, parentID uuid.UUID) error {
	return pick(r.db, tx).Model(&model.Assembly{}).
		Where("parent_item_id = ? AND is_primary = ?", parentID, true).
		Update("is_primary", false).Error
}

func (r *assemblyRepo) DeactivateVersion(tx *gorm.DB, parentID uuid.UUID, version string) error {
	return pick(r.db, tx).Model(&model.Assembly{}).
		Where("parent_item_id = ? AND version = ?", parentID, version).
		Update("is_active", false).Error
}
