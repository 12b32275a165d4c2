// Package gateway defines the uniform adapter contract integrated payment
// processors must satisfy (4.C2), independent of any one vendor's wire
// format.
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the gateway-reported state of a refund, normalized across
// vendors.
type Status string

const (
	StatusProcessing Status = "PROCESSING"
	StatusPending    Status = "PENDING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusUnknown    Status = "UNKNOWN"
)

// Credentials carries the decrypted, per-merchant secret material an
// adapter needs for one call, obtained from the Credential Manager (C3).
type Credentials struct {
	APIKey    string
	APISecret string
	MerchantKey string
	Extra     map[string]string
}

// RefundRequest is the normalized request an adapter receives to initiate
// or re-check a refund.
type RefundRequest struct {
	GatewayTransactionID string
	GatewayRefundID      string // set for checkRefundStatus
	RefundReference      string // engine-generated idempotency reference passed to the vendor
	Amount               decimal.Decimal
	Currency             string
	Reason               string
}

// RefundResult is the adapter's normalized response, per 4.C2's field list.
type RefundResult struct {
	Success                 bool
	GatewayRefundID         string
	Status                  Status
	ProcessedAmount         decimal.Decimal
	ProcessingDate          *time.Time
	EstimatedSettlementDate *time.Time
	ErrorCode               string
	ErrorMessage            string
	GatewayResponseCode     string
	Retryable               bool
	RawResponse             string
}

// NormalizedEvent is one parsed webhook event, vendor-agnostic.
type NormalizedEvent struct {
	EventID         string
	GatewayRefundID string
	Status          Status
	Result          RefundResult
	OccurredAt      time.Time
}

// Adapter is the fixed contract every integrated gateway implements.
type Adapter interface {
	GatewayType() string
	ProcessRefund(ctx context.Context, req RefundRequest, creds Credentials) (RefundResult, error)
	CheckRefundStatus(ctx context.Context, gatewayRefundID string, creds Credentials) (RefundResult, error)
	ValidateWebhookSignature(payload []byte, signature string, secret string) bool
	ParseWebhookEvent(payload []byte) ([]NormalizedEvent, error)
}
