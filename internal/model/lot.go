package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LotOrigin string

const (
	LotReceived     LotOrigin = "RECEIVED"
	LotAssembled    LotOrigin = "ASSEMBLED"
	LotDisassembled LotOrigin = "DISASSEMBLED"
)

// Lot is a quantity of one item received at one time at one unit cost.
// Quantity is a projection of the lot's transactions and only ever decreases
// after creation. Lots are never deleted; exhausted lots go inactive.
type Lot struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CreatedBy string    `json:"created_by"`

	ItemID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_lot_item_code" json:"item_id"`
	LotCode         string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_lot_item_code" json:"lot_code"`
	Origin          LotOrigin       `gorm:"type:varchar(20);not null" json:"origin"`
	InitialQuantity decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"initial_quantity"`
	Quantity        decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	ReceivedAt      time.Time       `gorm:"not null;index" json:"received_at"`
	IsActive        bool            `gorm:"not null;index" json:"is_active"`

	// OriginalUnitCost is written once; revaluations move CurrentUnitCost.
	OriginalUnitCost decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"original_unit_cost"`
	CurrentUnitCost  decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"current_unit_cost"`

	// Provenance of the cost the lot was created with. Produced lots inherit
	// the estimate flag of their inputs.
	CostSource     CostSource `gorm:"type:varchar(20);not null" json:"cost_source"`
	EstimateFlag   bool       `gorm:"not null" json:"estimate_flag"`
	EstimateReason string     `gorm:"type:text" json:"estimate_reason,omitempty"`
}

func (l *Lot) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// RecordedCost is the lot's usable cost: current if set, else original.
func (l *Lot) RecordedCost() (decimal.Decimal, bool) {
	if l.CurrentUnitCost.Valid {
		return l.CurrentUnitCost.Decimal, true
	}
	if l.OriginalUnitCost.Valid {
		return l.OriginalUnitCost.Decimal, true
	}
	return decimal.Zero, false
}
