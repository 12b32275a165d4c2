// Package transaction describes the external read-model the engine
// consults before allowing a refund: the original captured payment.
package transaction

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of the originating transaction as reported
// by whichever system of record owns it.
type Status string

const (
	StatusCaptured Status = "CAPTURED"
	StatusVoided   Status = "VOIDED"
	StatusRefunded Status = "REFUNDED"
)

// Transaction is the read-only view of an original captured payment.
type Transaction struct {
	ID                   string
	MerchantID           string
	Amount               decimal.Decimal
	Currency             string
	GatewayType          string
	GatewayTransactionID string
	CapturedAt           time.Time
	Status               Status
}

// Reader is the external collaborator contract: the engine never writes
// transactions, only reads them to validate refund eligibility.
type Reader interface {
	FindByID(ctx context.Context, id string) (*Transaction, error)
}
