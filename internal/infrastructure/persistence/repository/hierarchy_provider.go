package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/erp/refundengine/internal/infrastructure/persistence/models"
)

// GormHierarchyProvider implements parameter.HierarchyProvider over the
// static merchant->organization->bank assignment table.
type GormHierarchyProvider struct {
	db *gorm.DB
}

// NewGormHierarchyProvider builds a GormHierarchyProvider.
func NewGormHierarchyProvider(db *gorm.DB) *GormHierarchyProvider {
	return &GormHierarchyProvider{db: db}
}

// Chain returns (organizationId, bankId) for merchantID, or empty strings
// if the merchant has no recorded ancestry (the resolver then falls
// through straight to PROGRAM).
func (p *GormHierarchyProvider) Chain(ctx context.Context, merchantID string) (string, string, error) {
	var m models.MerchantHierarchyModel
	err := p.db.WithContext(ctx).Where("merchant_id = ?", merchantID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", "", nil
		}
		return "", "", err
	}
	return m.OrganizationID, m.BankID, nil
}
