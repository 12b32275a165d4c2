package refund

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/shared"
)

// Repository persists refund requests with atomic state+history writes, per
// 4.M3: the new status is written only after the history event, verified
// with the aggregate's optimistic-concurrency version field.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Request, error)
	FindByMerchantTransactionIdempotencyKey(ctx context.Context, merchantID, transactionID, idempotencyKey string) (*Request, error)
	FindByGatewayReference(ctx context.Context, gatewayType, reference string) (*Request, error)
	FindAll(ctx context.Context, filter shared.Filter, merchantID, status string) ([]Request, int64, error)
	FindPending(ctx context.Context, statuses []Status, limit int) ([]Request, error)

	// Save performs an optimistic-concurrency write: the caller must have
	// loaded the current version; Save fails with shared.ErrConcurrencyConflict
	// if the stored version has since advanced.
	Save(ctx context.Context, r *Request) error

	SumCompletedByTransaction(ctx context.Context, transactionID string) (decimal.Decimal, error)
	SumByMerchant(ctx context.Context, merchantID string) (decimal.Decimal, error)
	CountByStatus(ctx context.Context, merchantID string) (map[Status]int64, error)
}
