package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/refundengine/internal/domain/bankaccount"
	"github.com/erp/refundengine/internal/infrastructure/persistence/models"
)

// GormBankAccountRepository implements bankaccount.Repository over GORM.
type GormBankAccountRepository struct {
	db *gorm.DB
}

// NewGormBankAccountRepository builds a GormBankAccountRepository.
func NewGormBankAccountRepository(db *gorm.DB) *GormBankAccountRepository {
	return &GormBankAccountRepository{db: db}
}

func (r *GormBankAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*bankaccount.Account, error) {
	var m models.BankAccountModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain(), nil
}

func (r *GormBankAccountRepository) FindByMerchant(ctx context.Context, merchantID string) ([]bankaccount.Account, error) {
	var rows []models.BankAccountModel
	if err := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]bankaccount.Account, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].ToDomain())
	}
	return out, nil
}

func (r *GormBankAccountRepository) Save(ctx context.Context, a *bankaccount.Account) error {
	m := models.BankAccountModelFromDomain(a)
	return r.db.WithContext(ctx).Save(m).Error
}

// ClearDefault unsets is_default on every other account for merchantID, so
// SetDefault-style callers keep the at-most-one-default invariant.
func (r *GormBankAccountRepository) ClearDefault(ctx context.Context, merchantID string, keepID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&models.BankAccountModel{}).
		Where("merchant_id = ? AND id <> ?", merchantID, keepID).
		Update("is_default", false).Error
}
