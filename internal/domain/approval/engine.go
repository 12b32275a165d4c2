package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/shared"
)

// Engine evaluates rules against a candidate refund and drives escalation
// ticks, the full 4.C4 component.
type Engine struct {
	rules *ruleSource
	repo  Repository
}

type ruleSource struct {
	repo RuleRepository
}

// NewEngine builds an Engine over the given rule and approval repositories.
func NewEngine(ruleRepo RuleRepository, repo Repository) *Engine {
	return &Engine{rules: &ruleSource{repo: ruleRepo}, repo: repo}
}

// Evaluate finds the first matching rule for the merchant and, if any
// matches, creates and persists a pending ApprovalRequest. A nil result
// with no error means no approval is required.
func (e *Engine) Evaluate(ctx context.Context, refundID uuid.UUID, merchantID string, amount decimal.Decimal, reasonCode, refundMethod string) (*Request, error) {
	rules, err := e.rules.repo.FindByMerchant(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if !rule.Condition.Evaluate(amount, reasonCode, refundMethod) {
			continue
		}
		req, err := New(refundID, rule.RequiredLevels, rule.EscalationAfter)
		if err != nil {
			return nil, err
		}
		if err := e.repo.Save(ctx, req); err != nil {
			return nil, err
		}
		return req, nil
	}
	return nil, nil
}

// Decide applies an approver's decision by approvalID.
func (e *Engine) Decide(ctx context.Context, approvalID uuid.UUID, approved bool, approver, reason string) (*Request, error) {
	req, err := e.repo.FindByID(ctx, approvalID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, shared.ErrNotFound
	}
	if err := req.Decide(approved, approver, reason); err != nil {
		return nil, err
	}
	if err := e.repo.Save(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// EscalationResult reports what Tick did to one past-deadline approval, so
// the worker handler knows which notifications/queue messages to emit.
type EscalationResult struct {
	Approval   *Request
	Escalated  bool
	Finalized  bool
}

// Tick scans every pending approval past its deadline, advances or
// finalizes each, and persists the result. Every request is escalated with
// the caller-supplied defaultEscalationAfter and finalized with
// defaultFallback; a Rule's own EscalationAfter and Fallback are not
// consulted here.
func (e *Engine) Tick(ctx context.Context, defaultEscalationAfter time.Duration, defaultFallback FallbackAction) ([]EscalationResult, error) {
	now := time.Now().UTC()
	pending, err := e.repo.FindPastDeadline(ctx, now)
	if err != nil {
		return nil, err
	}
	results := make([]EscalationResult, 0, len(pending))
	for i := range pending {
		req := &pending[i]
		escalated, finalized := req.Escalate(defaultEscalationAfter, defaultFallback)
		if err := e.repo.Save(ctx, req); err != nil {
			return nil, err
		}
		results = append(results, EscalationResult{Approval: req, Escalated: escalated, Finalized: finalized})
	}
	return results, nil
}
