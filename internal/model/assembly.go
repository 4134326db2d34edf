package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Assembly is one BOM edge: ParentItem consumes ChildItem.
// Many edges share a parent; (ParentItemID, Version) groups them into a set
// and IsPrimary marks the set used when no version is pinned.
type Assembly struct {
	BaseModel
	ParentItemID uuid.UUID `gorm:"type:uuid;not null;index:idx_assembly_parent" json:"parent_item_id"`
	ChildItemID  uuid.UUID `gorm:"type:uuid;not null" json:"child_item_id"`
	Version      string    `gorm:"type:varchar(32);not null;index:idx_assembly_parent" json:"version"`

	// Child quantity per unit parent, before loss.
	Ratio decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"ratio"`
	// Fraction of child consumed in excess of Ratio.
	LossFactor decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"loss_factor"`
	// Fraction of theoretical parent output actually achieved.
	YieldFactor decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"yield_factor"`

	IsEnergyOrOverhead bool       `gorm:"not null" json:"is_energy_or_overhead"`
	IsPrimary          bool       `gorm:"not null" json:"is_primary"`
	IsActive           bool       `gorm:"not null" json:"is_active"`
	EffectiveFrom      *time.Time `json:"effective_from,omitempty"`
	EffectiveTo        *time.Time `json:"effective_to,omitempty"`
	Sequence           int        `gorm:"not null" json:"sequence"`
}

// QtyPerParent is the child quantity drawn per unit of parent:
// ratio × (1 + loss) / yield.
func (a *Assembly) QtyPerParent() decimal.Decimal {
	yield := a.YieldFactor
	if yield.IsZero() {
		yield = decimal.NewFromInt(1)
	}
	return a.Ratio.Mul(decimal.NewFromInt(1).Add(a.LossFactor)).Div(yield)
}

// RecoveredPerParent is the child quantity recovered per unit of parent on
// disassembly: ratio × (1 − loss).
func (a *Assembly) RecoveredPerParent() decimal.Decimal {
	return a.Ratio.Mul(decimal.NewFromInt(1).Sub(a.LossFactor))
}
