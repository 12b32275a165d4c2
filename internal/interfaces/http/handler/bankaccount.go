package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/erp/refundengine/internal/domain/bankaccount"
	"github.com/erp/refundengine/internal/interfaces/http/dto"
)

// accountEncryptor is the envelope-encryption dependency the handler needs
// to protect a full account number at rest; satisfied by
// secrets.KMSCredentialManager.EncryptBytes.
type accountEncryptor interface {
	EncryptBytes(ctx context.Context, plaintext []byte) ([]byte, error)
}

// BankAccountHandler exposes the OTHER-method refund destination registry
// over HTTP.
type BankAccountHandler struct {
	BaseHandler
	repo      bankaccount.Repository
	encryptor accountEncryptor
}

// NewBankAccountHandler wires a BankAccountHandler.
func NewBankAccountHandler(repo bankaccount.Repository, encryptor accountEncryptor) *BankAccountHandler {
	return &BankAccountHandler{repo: repo, encryptor: encryptor}
}

// Create handles POST /bank-accounts.
func (h *BankAccountHandler) Create(c *gin.Context) {
	var req dto.CreateBankAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	last4 := req.AccountNumber
	if len(last4) > 4 {
		last4 = last4[len(last4)-4:]
	}

	encrypted, err := h.encryptor.EncryptBytes(c.Request.Context(), []byte(req.AccountNumber))
	if err != nil {
		h.InternalError(c, "failed to encrypt account number")
		return
	}

	acct, err := bankaccount.New(req.MerchantID, req.HolderName, bankaccount.AccountType(req.AccountType), req.RoutingNumber, last4, encrypted)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if err := h.repo.Save(c.Request.Context(), acct); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toBankAccountResponse(acct))
}

// List handles GET /bank-accounts?merchantId=....
func (h *BankAccountHandler) List(c *gin.Context) {
	merchantID := c.Query("merchantId")
	if merchantID == "" {
		h.BadRequest(c, "merchantId is required")
		return
	}
	accounts, err := h.repo.FindByMerchant(c.Request.Context(), merchantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	out := make([]dto.BankAccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, toBankAccountResponse(&accounts[i]))
	}
	h.Success(c, out)
}

// SetDefault handles PUT /bank-accounts/{id}/default, enforcing the
// at-most-one-default-per-merchant invariant via ClearDefault.
func (h *BankAccountHandler) SetDefault(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid bank account id")
		return
	}
	acct, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if acct == nil {
		h.NotFound(c, "bank account not found")
		return
	}
	if err := h.repo.ClearDefault(c.Request.Context(), acct.MerchantID, acct.ID); err != nil {
		h.HandleError(c, err)
		return
	}
	acct.IsDefault = true
	acct.IncrementVersion()
	if err := h.repo.Save(c.Request.Context(), acct); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toBankAccountResponse(acct))
}

func toBankAccountResponse(a *bankaccount.Account) dto.BankAccountResponse {
	return dto.BankAccountResponse{
		ID:                 a.ID.String(),
		MerchantID:         a.MerchantID,
		HolderName:         a.HolderName,
		AccountType:        string(a.AccountType),
		RoutingNumber:      a.RoutingNumber,
		AccountNumberLast4: a.AccountNumberLast4,
		Status:             a.Status,
		VerificationStatus: string(a.VerificationStatus),
		IsDefault:          a.IsDefault,
	}
}
