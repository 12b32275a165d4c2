package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/erp/refundengine/internal/infrastructure/persistence/models"
	"github.com/erp/refundengine/internal/infrastructure/secrets"
)

// GormCredentialStore implements secrets.Store over GORM.
type GormCredentialStore struct {
	db *gorm.DB
}

// NewGormCredentialStore builds a GormCredentialStore.
func NewGormCredentialStore(db *gorm.DB) *GormCredentialStore {
	return &GormCredentialStore{db: db}
}

func (s *GormCredentialStore) Get(ctx context.Context, merchantID, gatewayType string) (*secrets.EncryptedRecord, error) {
	var m models.CredentialModel
	err := s.db.WithContext(ctx).
		Where("merchant_id = ? AND gateway_type = ?", merchantID, gatewayType).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &secrets.EncryptedRecord{
		CiphertextBlob: m.CiphertextBlob,
		EncryptedKey:   m.EncryptedKey,
		Nonce:          m.Nonce,
	}, nil
}

// Put upserts the encrypted record for (merchantID, gatewayType), used by
// provisioning flows after KMSCredentialManager.Seal.
func (s *GormCredentialStore) Put(ctx context.Context, merchantID, gatewayType string, rec *secrets.EncryptedRecord) error {
	m := models.CredentialModel{
		MerchantID:     merchantID,
		GatewayType:    gatewayType,
		CiphertextBlob: rec.CiphertextBlob,
		EncryptedKey:   rec.EncryptedKey,
		Nonce:          rec.Nonce,
	}
	return s.db.WithContext(ctx).Save(&m).Error
}

var _ secrets.Store = (*GormCredentialStore)(nil)
