// Package approval implements the multi-level approval workflow and
// escalation engine (4.C4): rule evaluation, deadline-driven escalation,
// and the auto-approve/auto-reject fallback beyond the last level.
package approval

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/refundengine/internal/domain/shared"
)

// Status is the lifecycle state of an ApprovalRequest.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Decision is one approver's recorded action at a level.
type Decision struct {
	Level      string
	Approver   string
	Approved   bool
	Reason     string
	DecidedAt  time.Time
}

// Request is the ApprovalRequest aggregate.
type Request struct {
	shared.BaseAggregateRoot

	RefundID          uuid.UUID
	CurrentLevel      string
	RequiredLevels    []string
	Decisions         []Decision
	EscalationDeadline time.Time
	Status            Status
}

// New creates a PENDING approval gated at the first required level, with
// its escalation deadline set by the rule that matched.
func New(refundID uuid.UUID, requiredLevels []string, escalationAfter time.Duration) (*Request, error) {
	if len(requiredLevels) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "requiredLevels must be non-empty")
	}
	return &Request{
		BaseAggregateRoot:  shared.NewBaseAggregateRoot(),
		RefundID:           refundID,
		CurrentLevel:       requiredLevels[0],
		RequiredLevels:     requiredLevels,
		Decisions:          make([]Decision, 0, len(requiredLevels)),
		EscalationDeadline: time.Now().UTC().Add(escalationAfter),
		Status:             StatusPending,
	}, nil
}

// indexOfLevel returns the position of level in RequiredLevels, or -1.
func (r *Request) indexOfLevel(level string) int {
	for i, l := range r.RequiredLevels {
		if l == level {
			return i
		}
	}
	return -1
}

// IsAtTerminalLevel reports whether CurrentLevel is the last required one.
func (r *Request) IsAtTerminalLevel() bool {
	idx := r.indexOfLevel(r.CurrentLevel)
	return idx == len(r.RequiredLevels)-1
}

// Decide records an approver's decision at the current level. On approve at
// the terminal level the request moves to APPROVED; on approve at a
// non-terminal level Decide itself advances CurrentLevel to the next
// required level and the request stays PENDING (every configured level
// requires its own decision; EscalationDeadline is left unchanged); on
// reject the request moves to REJECTED immediately regardless of level.
func (r *Request) Decide(approved bool, approver, reason string) error {
	if r.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", "approval is not pending")
	}
	r.Decisions = append(r.Decisions, Decision{
		Level:     r.CurrentLevel,
		Approver:  approver,
		Approved:  approved,
		Reason:    reason,
		DecidedAt: time.Now().UTC(),
	})
	r.IncrementVersion()

	if !approved {
		r.Status = StatusRejected
		return nil
	}
	if r.IsAtTerminalLevel() {
		r.Status = StatusApproved
		return nil
	}
	idx := r.indexOfLevel(r.CurrentLevel)
	r.CurrentLevel = r.RequiredLevels[idx+1]
	return nil
}

// FallbackAction is applied by Tick when escalation runs past the last
// configured level without a decision.
type FallbackAction string

const (
	FallbackAutoApprove FallbackAction = "auto-approve"
	FallbackAutoReject  FallbackAction = "auto-reject"
)

// Escalate advances CurrentLevel to the next configured level and resets
// the deadline, per tick()'s escalation behavior. If already at the
// terminal level, it applies fallback instead and returns true to signal
// the request reached a final status.
func (r *Request) Escalate(escalationAfter time.Duration, fallback FallbackAction) (escalated bool, finalized bool) {
	if r.Status != StatusPending {
		return false, false
	}
	if !r.IsAtTerminalLevel() {
		idx := r.indexOfLevel(r.CurrentLevel)
		r.CurrentLevel = r.RequiredLevels[idx+1]
		r.EscalationDeadline = time.Now().UTC().Add(escalationAfter)
		r.IncrementVersion()
		return true, false
	}
	switch fallback {
	case FallbackAutoApprove:
		r.Status = StatusApproved
	default:
		r.Status = StatusRejected
	}
	r.IncrementVersion()
	return false, true
}

// PastDeadline reports whether now has passed EscalationDeadline for a
// still-pending request.
func (r *Request) PastDeadline(now time.Time) bool {
	return r.Status == StatusPending && !now.Before(r.EscalationDeadline)
}

// ID returns the approval's identity.
func (r *Request) ID() uuid.UUID {
	return r.BaseEntity.ID
}
