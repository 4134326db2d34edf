package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TxReceipt TransactionType = "RECEIPT"
	TxIssue   TransactionType = "ISSUE"
	TxProduce TransactionType = "PRODUCE"
)

type CostSource string

const (
	CostFIFOActual      CostSource = "fifo_actual"
	CostStandard        CostSource = "standard"
	CostEstimated       CostSource = "estimated"
	CostSupplierInvoice CostSource = "supplier_invoice"
	CostOverride        CostSource = "override"
)

// Transaction is an immutable ledger entry against exactly one lot.
// Quantity is signed: receipts and production are positive, issues negative.
type Transaction struct {
	LedgerModel
	LotID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"lot_id"`
	ItemID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"item_id"`
	Type           TransactionType `gorm:"type:varchar(10);not null" json:"type"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	UnitCost       decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"unit_cost"`
	ExtendedCost   decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"extended_cost"`
	CostSource     CostSource      `gorm:"type:varchar(20);not null" json:"cost_source"`
	EstimateFlag   bool            `gorm:"not null" json:"estimate_flag"`
	EstimateReason string          `gorm:"type:text" json:"estimate_reason,omitempty"`
	Reason         string          `gorm:"type:text" json:"reason,omitempty"`
	OccurredAt     time.Time       `gorm:"not null;index" json:"occurred_at"`
}

func (t *Transaction) BeforeUpdate(tx *gorm.DB) error {
	return errors.New("immutable ledger: transactions cannot be updated")
}

func (t *Transaction) BeforeDelete(tx *gorm.DB) error {
	return errors.New("immutable ledger: transactions cannot be deleted")
}
