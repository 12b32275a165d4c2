// Package refundmgr implements the Refund Manager (M1): the entry-point API
// for create/update/cancel, compliance + approval routing on create, and
// the idempotency-locked double-check mutation pattern every write uses.
package refundmgr

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/approval"
	"github.com/erp/refundengine/internal/domain/bankaccount"
	"github.com/erp/refundengine/internal/domain/compliance"
	"github.com/erp/refundengine/internal/domain/lock"
	"github.com/erp/refundengine/internal/domain/parameter"
	"github.com/erp/refundengine/internal/domain/queuemsg"
	"github.com/erp/refundengine/internal/domain/refund"
	"github.com/erp/refundengine/internal/domain/shared"
	"github.com/erp/refundengine/internal/domain/transaction"
)

// CreateRequest is the inbound create() payload from 4.M1.
type CreateRequest struct {
	TransactionID         string
	MerchantID            string
	CustomerID            string
	BankAccountID         string
	Amount                decimal.Decimal
	Currency              string
	RefundMethod          refund.Method
	Reason                string
	ReasonCode            string
	ClientIdempotencyKey  string
	CorrelationID         string
}

// UpdatePatch is the set of mutable fields update() accepts.
type UpdatePatch struct {
	Amount     *decimal.Decimal
	Reason     *string
	ReasonCode *string
}

// Manager implements create/update/cancel/recordDecision over a refund
// Repository, guarded by the distributed lock and idempotency store shared
// with the worker pipeline.
type Manager struct {
	refunds     refund.Repository
	transactions transaction.Reader
	bankAccounts bankaccount.Repository
	validator   *compliance.Validator
	approvals   *approval.Engine
	resolver    *parameter.Resolver
	locker      lock.Locker
	idempotency shared.IdempotencyStore
	publisher   queuemsg.Publisher
	logger      *zap.Logger

	lockLease time.Duration
}

// NewManager wires the Refund Manager's collaborators.
func NewManager(
	refunds refund.Repository,
	transactions transaction.Reader,
	bankAccounts bankaccount.Repository,
	validator *compliance.Validator,
	approvals *approval.Engine,
	resolver *parameter.Resolver,
	locker lock.Locker,
	idempotency shared.IdempotencyStore,
	publisher queuemsg.Publisher,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		refunds: refunds, transactions: transactions, bankAccounts: bankAccounts,
		validator: validator, approvals: approvals, resolver: resolver,
		locker: locker, idempotency: idempotency, publisher: publisher,
		logger: logger, lockLease: 10 * time.Second,
	}
}

// Create validates, routes through approval or straight to processing, and
// persists the new refund. It is idempotent by
// (merchantId, transactionId, clientIdempotencyKey): a repeated create for
// the same tuple returns the already-created record instead of creating a
// second one. Callers that supply a client idempotency key serialize on a
// lock keyed on that tuple so two concurrent calls can't both pass the
// check-then-insert; idx_refund_idem (the DB-level partial unique index)
// backstops callers outside that lock's scope.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (*refund.Request, error) {
	if req.ClientIdempotencyKey == "" {
		return m.createLocked(ctx, req)
	}
	key := createLockKey(req.MerchantID, req.TransactionID, req.ClientIdempotencyKey)
	var result *refund.Request
	err := m.withKeyLock(ctx, key, func(ctx context.Context) error {
		r, err := m.createLocked(ctx, req)
		result = r
		return err
	})
	return result, err
}

func createLockKey(merchantID, transactionID, clientIdempotencyKey string) string {
	return "refund:create:" + merchantID + ":" + transactionID + ":" + clientIdempotencyKey
}

func (m *Manager) createLocked(ctx context.Context, req CreateRequest) (*refund.Request, error) {
	if existing, err := m.refunds.FindByMerchantTransactionIdempotencyKey(ctx, req.MerchantID, req.TransactionID, req.ClientIdempotencyKey); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, nil
	}

	txn, err := m.transactions.FindByID(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	var bankAcct *bankaccount.Account
	if req.BankAccountID != "" {
		id, parseErr := uuid.Parse(req.BankAccountID)
		if parseErr == nil {
			bankAcct, _ = m.bankAccounts.FindByID(ctx, id)
		}
	}

	completed, err := m.refunds.SumCompletedByTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}

	candidate := compliance.Candidate{
		MerchantID:       req.MerchantID,
		TransactionID:    req.TransactionID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		RefundMethod:     req.RefundMethod,
		ReasonCode:       req.ReasonCode,
		BankAccountID:    req.BankAccountID,
		Transaction:      txn,
		BankAccount:      bankAcct,
		CompletedRefunds: completed,
		ResolveParameter: func(name string) (parameter.Value, error) {
			v, _, err := m.resolver.Resolve(ctx, name, req.MerchantID)
			return v, err
		},
	}
	verdict := m.validator.Validate(candidate)
	if !verdict.OK() {
		r, _ := refund.New(req.TransactionID, req.MerchantID, req.Amount, req.Currency, req.RefundMethod, req.Reason, req.ReasonCode, req.ClientIdempotencyKey)
		if r != nil {
			_ = r.Transition(refund.StatusSubmitted, "system", "")
			_ = r.Transition(refund.StatusValidationFailed, "system", firstErrorCode(verdict))
		}
		return r, newValidationError(verdict)
	}

	r, err := refund.New(req.TransactionID, req.MerchantID, req.Amount, req.Currency, req.RefundMethod, req.Reason, req.ReasonCode, req.ClientIdempotencyKey)
	if err != nil {
		return nil, err
	}
	if req.CustomerID != "" {
		r.CustomerID = &req.CustomerID
	}
	if req.BankAccountID != "" {
		r.BankAccountID = &req.BankAccountID
	}
	r.CorrelationID = req.CorrelationID

	if err := r.Transition(refund.StatusSubmitted, "system", ""); err != nil {
		return nil, err
	}

	approvalReq, err := m.approvals.Evaluate(ctx, r.ID(), req.MerchantID, req.Amount, req.ReasonCode, string(req.RefundMethod))
	if err != nil {
		return nil, err
	}

	if approvalReq != nil {
		r.ApprovalStatus = refund.ApprovalPending
		if err := r.Transition(refund.StatusPendingApproval, "system", ""); err != nil {
			return nil, err
		}
	} else {
		if err := r.Transition(refund.StatusProcessing, "system", ""); err != nil {
			return nil, err
		}
	}

	if err := m.refunds.Save(ctx, r); err != nil {
		if req.ClientIdempotencyKey != "" && errors.Is(err, shared.ErrAlreadyExists) {
			// Lost the idx_refund_idem race despite holding the create lock
			// (e.g. a writer that bypassed Create, or a lock-backend outage);
			// hand the caller the record that won instead of failing.
			return m.refunds.FindByMerchantTransactionIdempotencyKey(ctx, req.MerchantID, req.TransactionID, req.ClientIdempotencyKey)
		}
		return nil, err
	}
	if req.ClientIdempotencyKey != "" {
		key := createLockKey(req.MerchantID, req.TransactionID, req.ClientIdempotencyKey)
		if _, err := m.idempotency.MarkProcessed(ctx, key, shared.DefaultIdempotencyConfig().TTL); err != nil {
			m.logger.Warn("failed to record create idempotency key", zap.String("refundId", r.ID().String()), zap.Error(err))
		}
	}

	if approvalReq == nil {
		if err := m.enqueueProcessRefund(ctx, r); err != nil {
			m.logger.Error("failed to enqueue PROCESS_REFUND", zap.String("refundId", r.ID().String()), zap.Error(err))
		}
	}

	return r, nil
}

// Update applies patch under the idempotency-locked double-check pattern:
// acquire the lock, reload the refund so a concurrent mutator's change is
// observed, check that the current status permits updates, then persist.
// The patched fields are not validated: compliance is not re-run and a
// patched amount is not checked against the transaction or for positivity.
func (m *Manager) Update(ctx context.Context, refundID uuid.UUID, patch UpdatePatch) (*refund.Request, error) {
	var result *refund.Request
	err := m.withLock(ctx, refundID, func(ctx context.Context) error {
		r, err := m.refunds.FindByID(ctx, refundID)
		if err != nil {
			return err
		}
		if r == nil {
			return shared.ErrNotFound
		}
		if !r.CanUpdate() {
			return shared.NewDomainError("INVALID_STATE", "refund cannot be updated in its current status")
		}
		if patch.Amount != nil {
			r.Amount = *patch.Amount
		}
		if patch.Reason != nil {
			r.Reason = *patch.Reason
		}
		if patch.ReasonCode != nil {
			r.ReasonCode = *patch.ReasonCode
		}
		if err := m.refunds.Save(ctx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// Cancel transitions a refund to CANCELED when permitted.
func (m *Manager) Cancel(ctx context.Context, refundID uuid.UUID, reason string) (*refund.Request, error) {
	var result *refund.Request
	err := m.withLock(ctx, refundID, func(ctx context.Context) error {
		r, err := m.refunds.FindByID(ctx, refundID)
		if err != nil {
			return err
		}
		if r == nil {
			return shared.ErrNotFound
		}
		if !r.CanCancel() {
			return shared.NewDomainError("INVALID_STATE", "refund cannot be canceled in its current status")
		}
		if err := r.Transition(refund.StatusCanceled, "client", reason); err != nil {
			return err
		}
		if err := m.refunds.Save(ctx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// RecordDecision is invoked internally by the Approval Engine (C4) once a
// decision reaches a final outcome: it advances the refund to PROCESSING on
// approve, or REJECTED on reject, and enqueues PROCESS_REFUND as needed.
func (m *Manager) RecordDecision(ctx context.Context, refundID uuid.UUID, approved bool) (*refund.Request, error) {
	var result *refund.Request
	err := m.withLock(ctx, refundID, func(ctx context.Context) error {
		r, err := m.refunds.FindByID(ctx, refundID)
		if err != nil {
			return err
		}
		if r == nil {
			return shared.ErrNotFound
		}
		if approved {
			r.ApprovalStatus = refund.ApprovalApproved
			if err := r.Transition(refund.StatusProcessing, "approval-engine", ""); err != nil {
				return err
			}
		} else {
			r.ApprovalStatus = refund.ApprovalRejected
			if err := r.Transition(refund.StatusRejected, "approval-engine", ""); err != nil {
				return err
			}
		}
		if err := m.refunds.Save(ctx, r); err != nil {
			return err
		}
		result = r
		return nil
	})
	if err == nil && approved {
		if enqErr := m.enqueueProcessRefund(ctx, result); enqErr != nil {
			m.logger.Error("failed to enqueue PROCESS_REFUND after approval", zap.Error(enqErr))
		}
	}
	return result, err
}

// withLock acquires the per-refund lock, runs fn, and always releases.
func (m *Manager) withLock(ctx context.Context, refundID uuid.UUID, fn func(ctx context.Context) error) error {
	return m.withKeyLock(ctx, "refund:"+refundID.String(), fn)
}

// withKeyLock acquires a lock on an arbitrary key, runs fn, and always
// releases.
func (m *Manager) withKeyLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	token, err := m.locker.Acquire(ctx, key, m.lockLease)
	if err != nil {
		return err
	}
	defer func() {
		_ = m.locker.Release(ctx, key, token)
	}()
	return fn(ctx)
}

func (m *Manager) enqueueProcessRefund(ctx context.Context, r *refund.Request) error {
	payload, err := json.Marshal(queuemsg.ProcessRefundPayload{RefundID: r.ID().String()})
	if err != nil {
		return err
	}
	return m.publisher.Publish(ctx, queuemsg.Message{
		Type:           queuemsg.TypeProcessRefund,
		Payload:        payload,
		IdempotencyKey: r.ID().String() + ":process:" + strconv.Itoa(r.GetVersion()),
		EnqueuedAt:     time.Now().UTC(),
		GroupKey:       r.ID().String(),
		CorrelationID:  r.CorrelationID,
	})
}

func firstErrorCode(v compliance.Verdict) string {
	if len(v.Errors) == 0 {
		return ""
	}
	return v.Errors[0].Code
}

func newValidationError(v compliance.Verdict) error {
	return shared.NewDomainError("VALIDATION_FAILED", firstErrorCode(v))
}
