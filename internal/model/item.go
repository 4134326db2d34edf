package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is anything that carries cost: raw material, intermediate, finished good,
// or a non-physical adder such as energy or labour (IsTracked=false).
type Item struct {
	BaseModel
	Code      string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name      string `gorm:"type:varchar(255);not null" json:"name"`
	Unit      string `gorm:"type:varchar(20)" json:"unit"`
	IsTracked bool   `gorm:"not null" json:"is_tracked"`

	StandardCost decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"standard_cost"`

	// Audited fallback used when neither an actual nor a standard cost exists.
	EstimatedCost  decimal.NullDecimal `gorm:"type:decimal(20,6)" json:"estimated_cost"`
	EstimateReason string              `gorm:"type:text" json:"estimate_reason,omitempty"`
	EstimatedBy    string              `gorm:"type:varchar(255)" json:"estimated_by,omitempty"`
	EstimatedAt    *time.Time          `json:"estimated_at,omitempty"`
}
