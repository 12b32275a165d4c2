package parameter

import (
	"context"
	"time"
)

// Repository persists Parameter records and their Definitions.
type Repository interface {
	// FindEffective returns the effective record, if any, for
	// (name, entityType, entityId) at time t.
	FindEffective(ctx context.Context, name string, entityType EntityType, entityID string, t time.Time) (*Parameter, error)

	Save(ctx context.Context, p *Parameter) error
	FindDefinition(ctx context.Context, name string) (*Definition, error)
	SaveDefinition(ctx context.Context, d *Definition) error

	FindByEntity(ctx context.Context, entityType EntityType, entityID string) ([]Parameter, error)
}

// HierarchyProvider resolves the ancestor chain for a merchant:
// merchantId -> organizationId -> bankId -> "PROGRAM".
type HierarchyProvider interface {
	Chain(ctx context.Context, merchantID string) (organizationID, bankID string, err error)
}
