package dto

// CreateBankAccountRequest is the POST /bank-accounts body. AccountNumber
// is accepted once, encrypted by the handler, and never echoed back.
type CreateBankAccountRequest struct {
	MerchantID     string `json:"merchantId" binding:"required"`
	HolderName     string `json:"holderName" binding:"required"`
	AccountType    string `json:"accountType" binding:"required,oneof=CHECKING SAVINGS"`
	RoutingNumber  string `json:"routingNumber" binding:"required"`
	AccountNumber  string `json:"accountNumber" binding:"required"`
}

// BankAccountResponse never carries the full account number, only the
// last 4 digits kept for display/reconciliation.
type BankAccountResponse struct {
	ID                 string `json:"id"`
	MerchantID         string `json:"merchantId"`
	HolderName         string `json:"holderName"`
	AccountType        string `json:"accountType"`
	RoutingNumber      string `json:"routingNumber"`
	AccountNumberLast4 string `json:"accountNumberLast4"`
	Status             string `json:"status"`
	VerificationStatus string `json:"verificationStatus"`
	IsDefault          bool   `json:"isDefault"`
}
