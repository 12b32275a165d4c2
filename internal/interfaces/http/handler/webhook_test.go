package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/refundengine/internal/domain/gateway"
	"github.com/erp/refundengine/internal/domain/lock"
	"github.com/erp/refundengine/internal/domain/refund"
	"github.com/erp/refundengine/internal/domain/shared"
)

type recordingAdapter struct {
	gatewayType    string
	gotSignature   string
	validateResult bool
	events         []gateway.NormalizedEvent
}

func (a *recordingAdapter) GatewayType() string { return a.gatewayType }
func (a *recordingAdapter) ProcessRefund(context.Context, gateway.RefundRequest, gateway.Credentials) (gateway.RefundResult, error) {
	return gateway.RefundResult{}, nil
}
func (a *recordingAdapter) CheckRefundStatus(context.Context, string, gateway.Credentials) (gateway.RefundResult, error) {
	return gateway.RefundResult{}, nil
}
func (a *recordingAdapter) ValidateWebhookSignature(_ []byte, signature string, _ string) bool {
	a.gotSignature = signature
	return a.validateResult
}
func (a *recordingAdapter) ParseWebhookEvent([]byte) ([]gateway.NormalizedEvent, error) {
	return a.events, nil
}

type stubRegistry struct {
	adapter gateway.Adapter
}

func (r *stubRegistry) Register(gateway.Adapter)          {}
func (r *stubRegistry) List() []string                    { return nil }
func (r *stubRegistry) Get(gatewayType string) (gateway.Adapter, error) {
	if r.adapter == nil || r.adapter.GatewayType() != gatewayType {
		return nil, gateway.ErrGatewayNotRegistered
	}
	return r.adapter, nil
}

type noopRefundRepository struct{}

func (noopRefundRepository) FindByID(context.Context, uuid.UUID) (*refund.Request, error) {
	return nil, nil
}
func (noopRefundRepository) FindByMerchantTransactionIdempotencyKey(context.Context, string, string, string) (*refund.Request, error) {
	return nil, nil
}
func (noopRefundRepository) FindByGatewayReference(context.Context, string, string) (*refund.Request, error) {
	return nil, nil
}
func (noopRefundRepository) FindAll(context.Context, shared.Filter, string, string) ([]refund.Request, int64, error) {
	return nil, 0, nil
}
func (noopRefundRepository) FindPending(context.Context, []refund.Status, int) ([]refund.Request, error) {
	return nil, nil
}
func (noopRefundRepository) Save(context.Context, *refund.Request) error { return nil }
func (noopRefundRepository) SumCompletedByTransaction(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (noopRefundRepository) SumByMerchant(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}
func (noopRefundRepository) CountByStatus(context.Context, string) (map[refund.Status]int64, error) {
	return nil, nil
}

type noopLocker struct{}

func (noopLocker) Acquire(context.Context, string, time.Duration) (lock.Token, error) {
	return "token", nil
}
func (noopLocker) Extend(context.Context, string, lock.Token, time.Duration) error { return nil }
func (noopLocker) Release(context.Context, string, lock.Token) error              { return nil }

func TestWebhookHandler_Handle_AlipaySignatureReadableAfterBodyDrain(t *testing.T) {
	gin.SetMode(gin.TestMode)

	adapter := &recordingAdapter{gatewayType: "ALIPAY", validateResult: true}
	h := NewWebhookHandler(&stubRegistry{adapter: adapter}, noopRefundRepository{}, noopLocker{}, map[string]string{"ALIPAY": "secret"}, nil)

	form := url.Values{}
	form.Set("sign", "expected-signature")
	form.Set("out_trade_no", "txn-1")
	body := strings.NewReader(form.Encode())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/ALIPAY", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "gateway", Value: "ALIPAY"}}

	h.Handle(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "expected-signature", adapter.gotSignature, "reading the body for the signature must not blank it out before ValidateWebhookSignature runs")
}

func TestWebhookHandler_Handle_AlipayBadSignatureRejected(t *testing.T) {
	gin.SetMode(gin.TestMode)

	adapter := &recordingAdapter{gatewayType: "ALIPAY", validateResult: false}
	h := NewWebhookHandler(&stubRegistry{adapter: adapter}, noopRefundRepository{}, noopLocker{}, map[string]string{"ALIPAY": "secret"}, nil)

	form := url.Values{}
	form.Set("sign", "wrong-signature")
	body := strings.NewReader(form.Encode())

	req := httptest.NewRequest(http.MethodPost, "/webhooks/ALIPAY", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = gin.Params{{Key: "gateway", Value: "ALIPAY"}}

	h.Handle(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "wrong-signature", adapter.gotSignature)
}
