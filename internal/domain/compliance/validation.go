// Package compliance combines parameter policy and payload rules into a
// layered verdict (4.C5): schema, transaction window, amount policy,
// method eligibility, parameter-driven rules. Within a layer, all failures
// are collected before surfacing; layers short-circuit only between
// layers, not within one.
package compliance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/bankaccount"
	"github.com/erp/refundengine/internal/domain/parameter"
	"github.com/erp/refundengine/internal/domain/refund"
	"github.com/erp/refundengine/internal/domain/shared/valueobject"
	"github.com/erp/refundengine/internal/domain/transaction"
)

// FieldError is one validation failure, attributable to a request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Verdict is the outcome of running all compliance layers.
type Verdict struct {
	Errors []FieldError
}

// OK reports whether the verdict carries no failures.
func (v Verdict) OK() bool { return len(v.Errors) == 0 }

// Add appends a FieldError to the verdict.
func (v *Verdict) Add(field, message, code string) {
	v.Errors = append(v.Errors, FieldError{Field: field, Message: message, Code: code})
}

// Candidate is the refund under validation plus the collaborators each
// layer needs, resolved once by the caller (Refund Manager).
type Candidate struct {
	MerchantID    string
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	RefundMethod  refund.Method
	ReasonCode    string
	BankAccountID string

	Transaction       *transaction.Transaction
	BankAccount       *bankaccount.Account
	MerchantBalance   decimal.Decimal
	CompletedRefunds  decimal.Decimal // sum of prior completed refunds for TransactionID

	ResolveParameter func(name string) (parameter.Value, error)
}

// Layer is one of the ordered compliance checks.
type Layer interface {
	Name() string
	// Check appends any FieldErrors it finds to v; shortCircuit reports
	// whether running further layers is meaningless (e.g. no transaction
	// found at all makes amount/method checks meaningless).
	Check(c Candidate, v *Verdict) (shortCircuit bool)
}

// SchemaLayer checks required fields, types, and enums (layer 1).
type SchemaLayer struct{}

func (SchemaLayer) Name() string { return "schema" }

func (SchemaLayer) Check(c Candidate, v *Verdict) bool {
	if c.TransactionID == "" {
		v.Add("transactionId", "transactionId is required", "REQUIRED")
	}
	if c.MerchantID == "" {
		v.Add("merchantId", "merchantId is required", "REQUIRED")
	}
	if c.Amount.Sign() <= 0 {
		v.Add("amount", "amount must be greater than zero", "INVALID_AMOUNT")
	}
	switch c.RefundMethod {
	case refund.MethodOriginalPayment, refund.MethodBalance, refund.MethodOther:
	default:
		v.Add("refundMethod", "refundMethod must be one of ORIGINAL_PAYMENT, BALANCE, OTHER", "INVALID_ENUM")
	}
	if c.RefundMethod == refund.MethodOther && c.BankAccountID == "" {
		v.Add("bankAccountId", "bankAccountId is required for OTHER refund method", "REQUIRED")
	}
	return !v.OK()
}

// TransactionWindowLayer checks transaction presence and refund age
// (layer 2): now - transaction.capturedAt <= parameter("maxRefundAgeDays").
type TransactionWindowLayer struct{ Now func() time.Time }

func (TransactionWindowLayer) Name() string { return "transaction_window" }

func (l TransactionWindowLayer) Check(c Candidate, v *Verdict) bool {
	if c.Transaction == nil {
		v.Add("transactionId", "transaction not found", "TRANSACTION_NOT_FOUND")
		return true
	}
	now := time.Now().UTC()
	if l.Now != nil {
		now = l.Now()
	}
	maxAgeParam, err := c.ResolveParameter("maxRefundAgeDays")
	if err == nil {
		maxAgeDays, convErr := maxAgeParam.AsDecimal()
		if convErr == nil {
			age := now.Sub(c.Transaction.CapturedAt)
			maxAge := time.Duration(maxAgeDays.IntPart()) * 24 * time.Hour
			if age > maxAge {
				v.Add("transactionId", "refund window has expired", "REFUND_WINDOW_EXPIRED")
			}
		}
	}
	return false
}

// AmountPolicyLayer checks amount <= transaction.amount - completed
// refunds, an optional per-refund cap parameter, and that the refund's
// currency matches the transaction's (layer 3).
type AmountPolicyLayer struct{}

func (AmountPolicyLayer) Name() string { return "amount_policy" }

func (AmountPolicyLayer) Check(c Candidate, v *Verdict) bool {
	if c.Transaction == nil {
		return true
	}
	if c.Currency != "" && c.Transaction.Currency != "" && c.Currency != c.Transaction.Currency {
		v.Add("currency", "refund currency does not match the transaction currency", "CURRENCY_MISMATCH")
		return false
	}

	currency := c.Transaction.Currency
	if currency == "" {
		currency = c.Currency
	}
	if currency == "" {
		currency = string(valueobject.DefaultCurrency)
	}

	txnAmount, txnErr := valueobject.NewMoney(c.Transaction.Amount, valueobject.Currency(currency))
	completed, completedErr := valueobject.NewMoney(c.CompletedRefunds, valueobject.Currency(currency))
	refundAmount, refundErr := valueobject.NewMoney(c.Amount, valueobject.Currency(currency))
	if txnErr != nil || completedErr != nil || refundErr != nil {
		remaining := c.Transaction.Amount.Sub(c.CompletedRefunds)
		if c.Amount.GreaterThan(remaining) {
			v.Add("amount", "refund amount exceeds remaining transaction balance", "MAX_REFUND_AMOUNT_EXCEEDED")
		}
	} else {
		remaining, err := txnAmount.Subtract(completed)
		if err != nil {
			v.Add("currency", "refund currency does not match the transaction currency", "CURRENCY_MISMATCH")
			return false
		}
		exceeds, err := refundAmount.GreaterThan(remaining)
		if err != nil {
			v.Add("currency", "refund currency does not match the transaction currency", "CURRENCY_MISMATCH")
			return false
		}
		if exceeds {
			v.Add("amount", "refund amount exceeds remaining transaction balance", "MAX_REFUND_AMOUNT_EXCEEDED")
		}
	}
	if cap, err := c.ResolveParameter("maxRefundAmount"); err == nil {
		if capDec, convErr := cap.AsDecimal(); convErr == nil && !capDec.IsZero() {
			if c.Amount.GreaterThan(capDec) {
				v.Add("amount", "refund amount exceeds configured cap", "MAX_REFUND_AMOUNT_EXCEEDED")
			}
		}
	}
	return false
}

// MethodEligibilityLayer checks gateway support, balance, or verified bank
// account depending on RefundMethod (layer 4).
type MethodEligibilityLayer struct{}

func (MethodEligibilityLayer) Name() string { return "method_eligibility" }

func (MethodEligibilityLayer) Check(c Candidate, v *Verdict) bool {
	switch c.RefundMethod {
	case refund.MethodOriginalPayment:
		if c.Transaction != nil && c.Transaction.GatewayType == "" {
			v.Add("refundMethod", "original gateway does not support refunds for this transaction", "GATEWAY_REFUND_UNSUPPORTED")
		}
	case refund.MethodBalance:
		if c.MerchantBalance.LessThan(c.Amount) {
			v.Add("refundMethod", "merchant balance is insufficient", "INSUFFICIENT_BALANCE")
		}
	case refund.MethodOther:
		if c.BankAccount == nil {
			v.Add("bankAccountId", "bank account not found", "BANK_ACCOUNT_NOT_FOUND")
		} else if c.BankAccount.VerificationStatus != bankaccount.VerificationVerified {
			v.Add("bankAccountId", "bank account is not verified", "BANK_ACCOUNT_NOT_VERIFIED")
		}
	}
	return false
}

// ParameterDrivenLayer applies reason-code requirements and other
// parameter-gated rules (layer 5).
type ParameterDrivenLayer struct{}

func (ParameterDrivenLayer) Name() string { return "parameter_driven" }

func (ParameterDrivenLayer) Check(c Candidate, v *Verdict) bool {
	if requireReason, err := c.ResolveParameter("requireReasonCode"); err == nil {
		if b, convErr := requireReason.AsBool(); convErr == nil && b && c.ReasonCode == "" {
			v.Add("reasonCode", "reasonCode is required by merchant policy", "REASON_CODE_REQUIRED")
		}
	}
	return false
}

// DefaultLayers returns the five layers in their required evaluation order.
func DefaultLayers() []Layer {
	return []Layer{
		SchemaLayer{},
		TransactionWindowLayer{},
		AmountPolicyLayer{},
		MethodEligibilityLayer{},
		ParameterDrivenLayer{},
	}
}

// Validator runs every layer in order, short-circuiting between layers
// (never within one) and returns the accumulated Verdict.
type Validator struct {
	Layers []Layer
}

// NewValidator builds a Validator over DefaultLayers.
func NewValidator() *Validator {
	return &Validator{Layers: DefaultLayers()}
}

// Validate runs all layers against c.
func (val *Validator) Validate(c Candidate) Verdict {
	var v Verdict
	for _, layer := range val.Layers {
		if stop := layer.Check(c, &v); stop {
			break
		}
	}
	return v
}
