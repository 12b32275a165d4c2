package models

import "time"

// CredentialModel is the GORM row for one merchant/gateway's
// envelope-encrypted credential blob (secrets.EncryptedRecord at rest).
type CredentialModel struct {
	MerchantID     string `gorm:"size:128;primaryKey"`
	GatewayType    string `gorm:"size:32;primaryKey"`
	CiphertextBlob []byte
	EncryptedKey   []byte
	Nonce          []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (CredentialModel) TableName() string { return "gateway_credentials" }
