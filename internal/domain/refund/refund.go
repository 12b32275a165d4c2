// Package refund implements the refund lifecycle state machine described
// in the engine's core: creation, validation-gated transitions, gateway
// dispatch bookkeeping, and the append-only status history.
package refund

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/shared"
)

// StatusHistoryEntry is one append-only transition record.
type StatusHistoryEntry struct {
	FromStatus Status    `json:"fromStatus"`
	ToStatus   Status    `json:"toStatus"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// ProcessingError records one failed attempt against a refund, kept for
// audit and for the retryable-failure count in end-to-end scenario 5.
type ProcessingError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Retryable  bool      `json:"retryable"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Request is the RefundRequest aggregate root.
type Request struct {
	shared.BaseAggregateRoot

	TransactionID string
	MerchantID    string
	CustomerID    *string
	BankAccountID *string

	Amount   decimal.Decimal
	Currency string

	RefundMethod Method
	Reason       string
	ReasonCode   string

	Status         Status
	ApprovalStatus ApprovalStatus

	GatewayType      string
	GatewayReference *string
	GatewayRawResponse string

	ProcessedAt             *time.Time
	CompletedAt             *time.Time
	EstimatedCompletionDate *time.Time

	StatusHistory    []StatusHistoryEntry
	ProcessingErrors []ProcessingError
	RetryCount       int

	ClientIdempotencyKey string
	CorrelationID        string

	Metadata map[string]any
}

// New creates a DRAFT refund request. Business validation (compliance,
// approval routing) happens in the application layer before Submit.
func New(transactionID, merchantID string, amount decimal.Decimal, currency string, method Method, reason, reasonCode, clientIdempotencyKey string) (*Request, error) {
	if amount.Sign() <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "amount must be greater than zero")
	}
	return &Request{
		BaseAggregateRoot:    shared.NewBaseAggregateRoot(),
		TransactionID:        transactionID,
		MerchantID:           merchantID,
		Amount:               amount,
		Currency:             currency,
		RefundMethod:         method,
		Reason:               reason,
		ReasonCode:           reasonCode,
		Status:               StatusDraft,
		ApprovalStatus:       ApprovalNone,
		ClientIdempotencyKey: clientIdempotencyKey,
		StatusHistory:        make([]StatusHistoryEntry, 0, 4),
		ProcessingErrors:     make([]ProcessingError, 0),
		Metadata:             make(map[string]any),
	}, nil
}

// Transition moves the refund to next, appending a history entry.
// Illegal transitions fail with INVALID_STATE_TRANSITION and leave the
// aggregate untouched, per 4.M1.
func (r *Request) Transition(next Status, actor, reason string) error {
	if !r.Status.CanTransition(next) {
		return shared.NewDomainError("INVALID_STATE_TRANSITION",
			"cannot transition refund from "+string(r.Status)+" to "+string(next))
	}
	entry := StatusHistoryEntry{
		FromStatus: r.Status,
		ToStatus:   next,
		Actor:      actor,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	r.Status = next
	r.StatusHistory = append(r.StatusHistory, entry)
	r.IncrementVersion()

	switch next {
	case StatusProcessing:
		now := time.Now().UTC()
		r.ProcessedAt = &now
	case StatusCompleted:
		now := time.Now().UTC()
		r.CompletedAt = &now
	}
	return nil
}

// RecordProcessingError appends a processing failure without mutating status;
// callers decide separately whether to transition based on retryability.
func (r *Request) RecordProcessingError(code, message string, retryable bool) {
	r.ProcessingErrors = append(r.ProcessingErrors, ProcessingError{
		Code:       code,
		Message:    message,
		Retryable:  retryable,
		OccurredAt: time.Now().UTC(),
	})
	if retryable {
		r.RetryCount++
	}
}

// SetGatewayReference stores the gateway-side refund reference. The handler
// must call this before a side effect can be considered recorded, so a
// message that loses visibility can reconcile via status check instead of
// reissuing the refund.
func (r *Request) SetGatewayReference(gatewayType, reference string) {
	r.GatewayType = gatewayType
	r.GatewayReference = &reference
}

// CanUpdate reports whether patch-style mutation is permitted in the
// current status, per 4.M1 update().
func (r *Request) CanUpdate() bool {
	switch r.Status {
	case StatusDraft, StatusSubmitted, StatusPendingApproval:
		return true
	default:
		return false
	}
}

// CanCancel reports whether cancel() is permitted: non-terminal and not
// already gateway-acknowledged.
func (r *Request) CanCancel() bool {
	if r.Status.IsTerminal() {
		return false
	}
	if r.Status == StatusGatewayPending {
		return false
	}
	return true
}

// ID returns the refund's identity as used externally (refundId).
func (r *Request) ID() uuid.UUID {
	return r.BaseEntity.ID
}
