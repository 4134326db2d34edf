package model

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Revaluation is the audit row for one change of a lot's current unit cost.
type Revaluation struct {
	LedgerModel
	ItemID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"item_id"`
	LotID             *uuid.UUID      `gorm:"type:uuid;index" json:"lot_id,omitempty"`
	OldUnitCost       decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"old_unit_cost"`
	NewUnitCost       decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"new_unit_cost"`
	DeltaExtendedCost decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"delta_extended_cost"`
	Reason            string          `gorm:"type:text" json:"reason"`
	Actor             string          `gorm:"type:varchar(255);not null" json:"actor"`

	PropagatedToAssemblies bool       `gorm:"not null" json:"propagated_to_assemblies"`
	SourceLotID            *uuid.UUID `gorm:"type:uuid" json:"source_lot_id,omitempty"`
}

func (r *Revaluation) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: revaluations cannot be updated")
}

func (r *Revaluation) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: revaluations cannot be deleted")
}
