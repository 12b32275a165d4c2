package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/transaction"
)

// TransactionModel is the GORM row for a captured payment transaction. The
// engine only ever reads this table; whatever system originates payments
// owns the writes.
type TransactionModel struct {
	ID                   string `gorm:"primaryKey"`
	MerchantID           string `gorm:"index;not null"`
	Amount               decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Currency             string          `gorm:"size:3;not null"`
	GatewayType          string          `gorm:"size:32"`
	GatewayTransactionID string
	CapturedAt           time.Time
	Status               string `gorm:"size:32"`
}

// TableName pins the GORM table name.
func (TransactionModel) TableName() string { return "transactions" }

// ToDomain converts the row into a transaction.Transaction read model.
func (m *TransactionModel) ToDomain() *transaction.Transaction {
	return &transaction.Transaction{
		ID:                   m.ID,
		MerchantID:           m.MerchantID,
		Amount:               m.Amount,
		Currency:             m.Currency,
		GatewayType:          m.GatewayType,
		GatewayTransactionID: m.GatewayTransactionID,
		CapturedAt:           m.CapturedAt,
		Status:               transaction.Status(m.Status),
	}
}
