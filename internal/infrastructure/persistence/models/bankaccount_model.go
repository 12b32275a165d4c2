package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/refundengine/internal/domain/bankaccount"
)

// BankAccountModel is the GORM row for a bankaccount.Account aggregate.
type BankAccountModel struct {
	ID                     uuid.UUID `gorm:"type:uuid;primaryKey"`
	MerchantID             string    `gorm:"index;not null"`
	HolderName             string
	AccountType            string
	RoutingNumber          string
	AccountNumberLast4     string
	EncryptedAccountNumber []byte
	Status                 string
	VerificationStatus     string
	IsDefault              bool
	Version                int `gorm:"not null;default:1"`
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

func (BankAccountModel) TableName() string { return "bank_accounts" }

// ToDomain converts the row into a bankaccount.Account.
func (m *BankAccountModel) ToDomain() *bankaccount.Account {
	a := &bankaccount.Account{
		MerchantID:             m.MerchantID,
		HolderName:             m.HolderName,
		AccountType:            bankaccount.AccountType(m.AccountType),
		RoutingNumber:          m.RoutingNumber,
		AccountNumberLast4:     m.AccountNumberLast4,
		EncryptedAccountNumber: m.EncryptedAccountNumber,
		Status:                 m.Status,
		VerificationStatus:     bankaccount.VerificationStatus(m.VerificationStatus),
		IsDefault:              m.IsDefault,
	}
	a.BaseEntity.ID = m.ID
	a.BaseEntity.CreatedAt = m.CreatedAt
	a.BaseEntity.UpdatedAt = m.UpdatedAt
	a.Version = m.Version
	return a
}

// BankAccountModelFromDomain builds a row from a bankaccount.Account.
func BankAccountModelFromDomain(a *bankaccount.Account) *BankAccountModel {
	return &BankAccountModel{
		ID:                     a.GetID(),
		MerchantID:             a.MerchantID,
		HolderName:             a.HolderName,
		AccountType:            string(a.AccountType),
		RoutingNumber:          a.RoutingNumber,
		AccountNumberLast4:     a.AccountNumberLast4,
		EncryptedAccountNumber: a.EncryptedAccountNumber,
		Status:                 a.Status,
		VerificationStatus:     string(a.VerificationStatus),
		IsDefault:              a.IsDefault,
		Version:                a.GetVersion(),
		CreatedAt:              a.GetCreatedAt(),
		UpdatedAt:              a.GetUpdatedAt(),
	}
}
