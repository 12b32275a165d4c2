package refund

import (
	"github.com/google/uuid"

	"github.com/erp/refundengine/internal/domain/shared"
)

const aggregateType = "RefundRequest"

// CreatedEvent fires when a refund request is first persisted.
type CreatedEvent struct {
	shared.BaseDomainEvent
	MerchantID string
	Amount     string
	Currency   string
}

// NewCreatedEvent builds a CreatedEvent for r.
func NewCreatedEvent(r *Request, tenantID uuid.UUID) *CreatedEvent {
	return &CreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("refund.created", aggregateType, r.ID(), tenantID),
		MerchantID:      r.MerchantID,
		Amount:          r.Amount.String(),
		Currency:        r.Currency,
	}
}

// StatusChangedEvent fires on every legal transition.
type StatusChangedEvent struct {
	shared.BaseDomainEvent
	FromStatus Status
	ToStatus   Status
	Reason     string
}

// NewStatusChangedEvent builds a StatusChangedEvent for the most recent
// transition recorded in r's history.
func NewStatusChangedEvent(r *Request, tenantID uuid.UUID) *StatusChangedEvent {
	var entry StatusHistoryEntry
	if n := len(r.StatusHistory); n > 0 {
		entry = r.StatusHistory[n-1]
	}
	return &StatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("refund.status_changed", aggregateType, r.ID(), tenantID),
		FromStatus:      entry.FromStatus,
		ToStatus:        entry.ToStatus,
		Reason:          entry.Reason,
	}
}

// CompletedEvent fires when a refund reaches COMPLETED.
type CompletedEvent struct {
	shared.BaseDomainEvent
	GatewayRefundID string
}

// NewCompletedEvent builds a CompletedEvent for r.
func NewCompletedEvent(r *Request, tenantID uuid.UUID) *CompletedEvent {
	ref := ""
	if r.GatewayReference != nil {
		ref = *r.GatewayReference
	}
	return &CompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("refund.completed", aggregateType, r.ID(), tenantID),
		GatewayRefundID: ref,
	}
}

// FailedEvent fires when a refund reaches FAILED.
type FailedEvent struct {
	shared.BaseDomainEvent
	Reason string
}

// NewFailedEvent builds a FailedEvent for r.
func NewFailedEvent(r *Request, tenantID uuid.UUID, reason string) *FailedEvent {
	return &FailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("refund.failed", aggregateType, r.ID(), tenantID),
		Reason:          reason,
	}
}

// ApprovalEscalatedEvent fires when C4's tick() advances a pending approval.
type ApprovalEscalatedEvent struct {
	shared.BaseDomainEvent
	NewLevel string
}

// NewApprovalEscalatedEvent builds an ApprovalEscalatedEvent for r.
func NewApprovalEscalatedEvent(r *Request, tenantID uuid.UUID, newLevel string) *ApprovalEscalatedEvent {
	return &ApprovalEscalatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent("refund.approval_escalated", aggregateType, r.ID(), tenantID),
		NewLevel:        newLevel,
	}
}
