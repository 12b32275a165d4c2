package compliance

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/erp/refundengine/internal/domain/parameter"
	"github.com/erp/refundengine/internal/domain/refund"
	"github.com/erp/refundengine/internal/domain/transaction"
)

func noParams(string) (parameter.Value, error) {
	return parameter.Value{}, assert.AnError
}

func baseCandidate() Candidate {
	return Candidate{
		MerchantID:    "m1",
		TransactionID: "t1",
		Amount:        decimal.NewFromInt(50),
		Currency:      "CNY",
		RefundMethod:  refund.MethodOriginalPayment,
		Transaction: &transaction.Transaction{
			ID:          "t1",
			Amount:      decimal.NewFromInt(100),
			Currency:    "CNY",
			GatewayType: "WECHAT",
			CapturedAt:  time.Now().Add(-time.Hour),
			Status:      transaction.StatusCaptured,
		},
		ResolveParameter: noParams,
	}
}

func TestAmountPolicyLayer_WithinRemainingBalance(t *testing.T) {
	c := baseCandidate()
	var v Verdict
	stop := AmountPolicyLayer{}.Check(c, &v)
	assert.False(t, stop)
	assert.True(t, v.OK())
}

func TestAmountPolicyLayer_ExceedsRemainingBalance(t *testing.T) {
	c := baseCandidate()
	c.CompletedRefunds = decimal.NewFromInt(60)
	var v Verdict
	AmountPolicyLayer{}.Check(c, &v)
	assert.False(t, v.OK())
	assert.Equal(t, "MAX_REFUND_AMOUNT_EXCEEDED", v.Errors[0].Code)
}

func TestAmountPolicyLayer_CurrencyMismatch(t *testing.T) {
	c := baseCandidate()
	c.Currency = "USD"
	var v Verdict
	stop := AmountPolicyLayer{}.Check(c, &v)
	assert.False(t, stop)
	assert.False(t, v.OK())
	assert.Equal(t, "CURRENCY_MISMATCH", v.Errors[0].Code)
	assert.Equal(t, "currency", v.Errors[0].Field)
}

func TestAmountPolicyLayer_NoTransactionShortCircuits(t *testing.T) {
	c := baseCandidate()
	c.Transaction = nil
	var v Verdict
	stop := AmountPolicyLayer{}.Check(c, &v)
	assert.True(t, stop)
	assert.True(t, v.OK())
}

func TestValidator_RunsLayersInOrder(t *testing.T) {
	val := NewValidator()
	c := baseCandidate()
	verdict := val.Validate(c)
	assert.True(t, verdict.OK())
}

func TestSchemaLayer_RejectsMissingFields(t *testing.T) {
	c := Candidate{ResolveParameter: noParams}
	var v Verdict
	stop := SchemaLayer{}.Check(c, &v)
	assert.True(t, stop)
	assert.False(t, v.OK())
}
