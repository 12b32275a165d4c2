// Package bankaccount models the verified-account path for OTHER-method
// refunds, including envelope-encrypted storage of the full account
// number.
package bankaccount

import (
	"github.com/erp/refundengine/internal/domain/shared"
)

// VerificationStatus is the bank account's verification state.
type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "UNVERIFIED"
	VerificationPending    VerificationStatus = "PENDING"
	VerificationVerified   VerificationStatus = "VERIFIED"
	VerificationFailed     VerificationStatus = "FAILED"
)

// AccountType enumerates the supported bank account kinds.
type AccountType string

const (
	AccountChecking AccountType = "CHECKING"
	AccountSavings  AccountType = "SAVINGS"
)

// Account is the BankAccount aggregate. The full account number is never
// kept in memory beyond the call that encrypts it: EncryptedAccountNumber
// holds an envelope-encrypted ciphertext (ciphertext + wrapped data key),
// produced by the Credential Manager's KMS-backed cipher.
type Account struct {
	shared.BaseAggregateRoot

	MerchantID             string
	HolderName             string
	AccountType            AccountType
	RoutingNumber          string
	AccountNumberLast4     string
	EncryptedAccountNumber []byte
	Status                 string
	VerificationStatus     VerificationStatus
	IsDefault              bool
}

// New creates an unverified bank account. accountNumberLast4 and
// encryptedAccountNumber must already be derived by the caller (the full
// number itself never becomes a field on Account).
func New(merchantID, holderName string, accountType AccountType, routingNumber, last4 string, encrypted []byte) (*Account, error) {
	if merchantID == "" || holderName == "" || routingNumber == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "merchantId, holderName, and routingNumber are required")
	}
	return &Account{
		BaseAggregateRoot:      shared.NewBaseAggregateRoot(),
		MerchantID:             merchantID,
		HolderName:             holderName,
		AccountType:            accountType,
		RoutingNumber:          routingNumber,
		AccountNumberLast4:     last4,
		EncryptedAccountNumber: encrypted,
		Status:                 "ACTIVE",
		VerificationStatus:     VerificationUnverified,
	}, nil
}

// MarkVerified transitions the account to VERIFIED.
func (a *Account) MarkVerified() {
	a.VerificationStatus = VerificationVerified
	a.IncrementVersion()
}

// MarkFailed transitions the account to FAILED.
func (a *Account) MarkFailed() {
	a.VerificationStatus = VerificationFailed
	a.IncrementVersion()
}

// IsUsableForRefund reports whether this account can back an OTHER-method
// refund.
func (a *Account) IsUsableForRefund() bool {
	return a.VerificationStatus == VerificationVerified && a.Status == "ACTIVE"
}
