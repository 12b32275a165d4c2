package gatewayimpl

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/erp/refundengine/internal/domain/gateway"
)

// StripeAdapter implements gateway.Adapter over stripe-go, the third
// commercial processor alongside WeChat Pay and Alipay. Unlike those two,
// Stripe already speaks a normalized REST/webhook model, so this adapter is
// the thinnest of the three: no custom signing, just the SDK's own request
// signing and webhook.ConstructEvent helper.
type StripeAdapter struct {
	sc *client.API
}

// NewStripeAdapter builds a StripeAdapter bound to one merchant's secret
// key; callers construct one per (merchant, gateway) pair since stripe-go's
// client.API carries credentials per instance.
func NewStripeAdapter(secretKey string) *StripeAdapter {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return &StripeAdapter{sc: sc}
}

func (a *StripeAdapter) GatewayType() string { return "STRIPE" }

func (a *StripeAdapter) ProcessRefund(ctx context.Context, req gateway.RefundRequest, creds gateway.Credentials) (gateway.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.GatewayTransactionID),
		Amount:        stripe.Int64(req.Amount.Mul(decimal.NewFromInt(100)).IntPart()),
		Reason:        stripe.String(mapStripeRefundReason(req.Reason)),
	}
	params.AddMetadata("refund_reference", req.RefundReference)
	params.Context = ctx

	r, err := a.sc.Refunds.New(params)
	if err != nil {
		return toRefundError(classifyStripeError(err)), nil
	}

	return a.toResult(r), nil
}

func (a *StripeAdapter) CheckRefundStatus(ctx context.Context, gatewayRefundID string, creds gateway.Credentials) (gateway.RefundResult, error) {
	params := &stripe.RefundParams{}
	params.Context = ctx

	r, err := a.sc.Refunds.Get(gatewayRefundID, params)
	if err != nil {
		return toRefundError(classifyStripeError(err)), nil
	}

	return a.toResult(r), nil
}

// ValidateWebhookSignature delegates to stripe-go's own HMAC-SHA256
// timestamped signature check (the Stripe-Signature header format), rather
// than reimplementing it the way the WeChat/Alipay adapters must.
func (a *StripeAdapter) ValidateWebhookSignature(payload []byte, signature string, secret string) bool {
	_, err := webhook.ConstructEvent(payload, signature, secret)
	return err == nil
}

func (a *StripeAdapter) ParseWebhookEvent(payload []byte) ([]gateway.NormalizedEvent, error) {
	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil {
		return nil, fmt.Errorf("stripe: parse event: %w", err)
	}

	if !strings.HasPrefix(string(evt.Type), "charge.refund") && !strings.HasPrefix(string(evt.Type), "refund.") {
		return nil, nil
	}

	var r stripe.Refund
	if err := json.Unmarshal(evt.Data.Raw, &r); err != nil {
		return nil, fmt.Errorf("stripe: parse refund object: %w", err)
	}

	result := a.toResult(&r)
	return []gateway.NormalizedEvent{{
		EventID:         evt.ID,
		GatewayRefundID: r.ID,
		Status:          result.Status,
		Result:          result,
		OccurredAt:      time.Unix(evt.Created, 0),
	}}, nil
}

func (a *StripeAdapter) toResult(r *stripe.Refund) gateway.RefundResult {
	status := mapStripeRefundStatus(r.Status)
	raw, _ := json.Marshal(r)
	result := gateway.RefundResult{
		Success:         status == gateway.StatusCompleted,
		GatewayRefundID: r.ID,
		Status:          status,
		ProcessedAmount: decimal.NewFromInt(r.Amount).Div(decimal.NewFromInt(100)),
		RawResponse:     string(raw),
	}
	if r.FailureReason != "" {
		result.ErrorCode = string(r.FailureReason)
		result.ErrorMessage = string(r.FailureReason)
	}
	return result
}

func mapStripeRefundStatus(status stripe.RefundStatus) gateway.Status {
	switch status {
	case stripe.RefundStatusSucceeded:
		return gateway.StatusCompleted
	case stripe.RefundStatusPending:
		return gateway.StatusProcessing
	case stripe.RefundStatusFailed, stripe.RefundStatusCanceled:
		return gateway.StatusFailed
	default:
		return gateway.StatusUnknown
	}
}

func mapStripeRefundReason(reason string) string {
	switch strings.ToLower(reason) {
	case "duplicate":
		return string(stripe.RefundReasonDuplicate)
	case "fraud", "fraudulent":
		return string(stripe.RefundReasonFraudulent)
	default:
		return string(stripe.RefundReasonRequestedByCustomer)
	}
}

// classifyStripeError maps a stripe.Error's Type into the shared
// gateway.ErrorCategory taxonomy so the worker pipeline's retry logic
// doesn't need Stripe-specific branches.
func classifyStripeError(err error) *gateway.Error {
	stripeErr, ok := err.(*stripe.Error)
	if !ok {
		return gateway.NewError(gateway.ErrorUnknown, err.Error(), true)
	}

	switch stripeErr.Type {
	case stripe.ErrorTypeAPIConnection:
		return gateway.NewError(gateway.ErrorConnection, stripeErr.Msg, true)
	case stripe.ErrorTypeAuthentication:
		return gateway.NewError(gateway.ErrorAuthentication, stripeErr.Msg, false)
	case stripe.ErrorTypeAPI:
		return gateway.NewError(gateway.ErrorServer, stripeErr.Msg, true)
	case stripe.ErrorTypeInvalidRequest:
		return gateway.NewError(gateway.ErrorValidation, stripeErr.Msg, false)
	case stripe.ErrorTypeRateLimit:
		return gateway.NewError(gateway.ErrorRejection, stripeErr.Msg, true)
	case stripe.ErrorTypeCard:
		return gateway.NewError(gateway.ErrorRejection, stripeErr.Msg, false)
	default:
		return gateway.NewError(gateway.ErrorUnknown, stripeErr.Msg, true)
	}
}

var _ gateway.Adapter = (*StripeAdapter)(nil)
