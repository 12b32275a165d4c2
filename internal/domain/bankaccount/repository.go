package bankaccount

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists BankAccount aggregates; at most one default per
// merchant is enforced by SetDefault.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	FindByMerchant(ctx context.Context, merchantID string) ([]Account, error)
	Save(ctx context.Context, a *Account) error

	// ClearDefault unsets IsDefault on every account for merchantID except
	// keepID, used by SetDefault to keep the at-most-one-default invariant.
	ClearDefault(ctx context.Context, merchantID string, keepID uuid.UUID) error
}
