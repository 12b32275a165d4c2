package dto

import "time"

// CreateRefundRequest is the POST /refunds body.
//
//	@Description	Create a refund request
type CreateRefundRequest struct {
	TransactionID        string `json:"transactionId" binding:"required"`
	MerchantID           string `json:"merchantId" binding:"required"`
	CustomerID           string `json:"customerId,omitempty"`
	BankAccountID        string `json:"bankAccountId,omitempty"`
	Amount               string `json:"amount" binding:"required"`
	Currency             string `json:"currency" binding:"required,len=3"`
	RefundMethod         string `json:"refundMethod" binding:"required,oneof=ORIGINAL_PAYMENT BALANCE OTHER"`
	Reason               string `json:"reason,omitempty"`
	ReasonCode           string `json:"reasonCode,omitempty"`
	ClientIdempotencyKey string `json:"clientIdempotencyKey" binding:"required"`
}

// UpdateRefundRequest is the PUT /refunds/{id} body; every field is
// optional and only supplied fields are patched.
type UpdateRefundRequest struct {
	Amount     *string `json:"amount,omitempty"`
	Reason     *string `json:"reason,omitempty"`
	ReasonCode *string `json:"reasonCode,omitempty"`
}

// CancelRefundRequest is the PUT /refunds/{id}/cancel body.
type CancelRefundRequest struct {
	Reason string `json:"reason,omitempty"`
}

// StatusHistoryEntryResponse is one entry of a refund's transition log.
type StatusHistoryEntryResponse struct {
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// RefundResponse is the wire representation of a RefundRequest aggregate.
//
//	@Description	Refund request response
type RefundResponse struct {
	ID                      string                       `json:"id"`
	TransactionID           string                       `json:"transactionId"`
	MerchantID              string                       `json:"merchantId"`
	CustomerID              *string                      `json:"customerId,omitempty"`
	BankAccountID           *string                      `json:"bankAccountId,omitempty"`
	Amount                  string                       `json:"amount"`
	Currency                string                       `json:"currency"`
	RefundMethod            string                       `json:"refundMethod"`
	Reason                  string                       `json:"reason,omitempty"`
	ReasonCode              string                       `json:"reasonCode,omitempty"`
	Status                  string                       `json:"status"`
	ApprovalStatus          string                       `json:"approvalStatus"`
	GatewayType             string                       `json:"gatewayType,omitempty"`
	GatewayReference        *string                      `json:"gatewayReference,omitempty"`
	ProcessedAt             *time.Time                   `json:"processedAt,omitempty"`
	CompletedAt             *time.Time                   `json:"completedAt,omitempty"`
	EstimatedCompletionDate *time.Time                   `json:"estimatedCompletionDate,omitempty"`
	RetryCount              int                          `json:"retryCount"`
	CorrelationID           string                       `json:"correlationId,omitempty"`
	StatusHistory           []StatusHistoryEntryResponse `json:"statusHistory,omitempty"`
	Version                 int                          `json:"version"`
}

// RefundStatisticsResponse is the GET /refunds/statistics body: refund
// counts by lifecycle status plus the merchant's lifetime refunded total.
type RefundStatisticsResponse struct {
	MerchantID    string           `json:"merchantId"`
	CountByStatus map[string]int64 `json:"countByStatus"`
	TotalRefunded string           `json:"totalRefunded"`
}
