package model

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CostDependency links an input of a production run to the lot it produced.
// Physical inputs carry the consumed lot and ISSUE transaction; overhead inputs
// (energy, labour) have no lot and only record the cost used.
// The produced cost is Σ Quantity × input unit cost × CostShare over the
// produced lot's inbound edges.
type CostDependency struct {
	LedgerModel
	ConsumedItemID uuid.UUID  `gorm:"type:uuid;not null" json:"consumed_item_id"`
	ConsumedLotID  *uuid.UUID `gorm:"type:uuid;index" json:"consumed_lot_id,omitempty"`
	ConsumedTxID   *uuid.UUID `gorm:"type:uuid" json:"consumed_tx_id,omitempty"`
	ProducedLotID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"produced_lot_id"`
	ProducedTxID   uuid.UUID  `gorm:"type:uuid;not null" json:"produced_tx_id"`

	Quantity   decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"unit_cost"`
	CostShare  decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"cost_share"`
	IsOverhead bool            `gorm:"not null" json:"is_overhead"`
}

func (d *CostDependency) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: cost dependencies cannot be updated")
}

func (d *CostDependency) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: cost dependencies cannot be deleted")
}
