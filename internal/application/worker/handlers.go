package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/approval"
	"github.com/erp/refundengine/internal/domain/bankaccount"
	"github.com/erp/refundengine/internal/domain/gateway"
	"github.com/erp/refundengine/internal/domain/lock"
	"github.com/erp/refundengine/internal/domain/queuemsg"
	"github.com/erp/refundengine/internal/domain/refund"
	"github.com/erp/refundengine/internal/domain/shared"
)

// BalancePath settles a BALANCE-method refund against the merchant's
// internal balance; no concrete implementation lives in this codebase
// beyond the interface seam.
type BalancePath interface {
	Credit(ctx context.Context, merchantID string, amount string, reference string) (gateway.RefundResult, error)
}

// OtherPath settles an OTHER-method refund via ACH to a verified bank
// account; out of scope beyond the interface seam.
type OtherPath interface {
	Disburse(ctx context.Context, account *bankaccount.Account, amount string, reference string) (gateway.RefundResult, error)
}

func withLock(ctx context.Context, locker lock.Locker, refundID uuid.UUID, lease time.Duration, fn func(ctx context.Context) error) error {
	key := "refund:" + refundID.String()
	token, err := locker.Acquire(ctx, key, lease)
	if err != nil {
		return err
	}
	defer func() { _ = locker.Release(ctx, key, token) }()
	return fn(ctx)
}

// ProcessRefundHandler implements PROCESS_REFUND: reload, assert state,
// select handler by refundMethod, execute, map result to new state.
type ProcessRefundHandler struct {
	Refunds     refund.Repository
	BankAccts   bankaccount.Repository
	Gateways    gateway.Registry
	Credentials gateway.CredentialManager
	Locker      lock.Locker
	Publisher   queuemsg.Publisher
	Balance     BalancePath
	Other       OtherPath
	Logger      *zap.Logger
	Lease       time.Duration
}

func (h *ProcessRefundHandler) Handle(ctx context.Context, msg queuemsg.Message) error {
	var payload queuemsg.ProcessRefundPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return shared.NewDomainError("VALIDATION_FAILED", "malformed PROCESS_REFUND payload")
	}
	refundID, err := uuid.Parse(payload.RefundID)
	if err != nil {
		return shared.NewDomainError("VALIDATION_FAILED", "malformed refundId")
	}

	return withLock(ctx, h.Locker, refundID, h.lease(), func(ctx context.Context) error {
		r, err := h.Refunds.FindByID(ctx, refundID)
		if err != nil {
			return err
		}
		if r == nil {
			return shared.ErrNotFound
		}
		if r.Status != refund.StatusSubmitted && r.Status != refund.StatusProcessing {
			return nil // already advanced past this point; ack without redoing work
		}
		if r.Status == refund.StatusSubmitted {
			if err := r.Transition(refund.StatusProcessing, "worker", ""); err != nil {
				return err
			}
		}

		result, execErr := h.execute(ctx, r)
		if execErr != nil {
			var gwErr *gateway.Error
			if asGatewayError(execErr, &gwErr) {
				r.RecordProcessingError(string(gwErr.Category), gwErr.Error(), gwErr.Retryable())
				if !gwErr.Retryable() {
					_ = r.Transition(refund.StatusFailed, "worker", gwErr.Error())
					_ = h.Refunds.Save(ctx, r)
				}
				return execErr
			}
			return execErr
		}

		h.applyResult(r, result)
		if err := h.Refunds.Save(ctx, r); err != nil {
			return err
		}
		if r.Status == refund.StatusGatewayPending || r.Status == refund.StatusGatewayError {
			_ = h.enqueueCheckGateway(ctx, r)
		}
		return nil
	})
}

func (h *ProcessRefundHandler) lease() time.Duration {
	if h.Lease > 0 {
		return h.Lease
	}
	return 10 * time.Second
}

func asGatewayError(err error, target **gateway.Error) bool {
	ge, ok := err.(*gateway.Error)
	if ok {
		*target = ge
	}
	return ok
}

// tracerName identifies spans emitted around gateway calls; no exporter is
// wired, so these spans are only observed if the host process registers one.
const tracerName = "refundengine/worker"

func startGatewaySpan(ctx context.Context, operation string, r *refund.Request) (context.Context, trace.Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, operation, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("refund.id", r.ID().String()),
			attribute.String("refund.gateway_type", r.GatewayType),
		))
	return ctx, span
}

func endGatewaySpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (h *ProcessRefundHandler) execute(ctx context.Context, r *refund.Request) (gateway.RefundResult, error) {
	switch r.RefundMethod {
	case refund.MethodOriginalPayment:
		adapter, err := h.Gateways.Get(r.GatewayType)
		if err != nil {
			return gateway.RefundResult{}, err
		}
		creds, err := h.Credentials.Get(ctx, r.MerchantID, r.GatewayType)
		if err != nil {
			return gateway.RefundResult{}, err
		}
		spanCtx, span := startGatewaySpan(ctx, "gateway.process_refund", r)
		result, err := adapter.ProcessRefund(spanCtx, gateway.RefundRequest{
			GatewayTransactionID: r.TransactionID,
			RefundReference:      r.ID().String(),
			Amount:               r.Amount,
			Currency:             r.Currency,
			Reason:               r.Reason,
		}, creds)
		endGatewaySpan(span, err)
		return result, err
	case refund.MethodBalance:
		return h.Balance.Credit(ctx, r.MerchantID, r.Amount.String(), r.ID().String())
	case refund.MethodOther:
		var acct *bankaccount.Account
		if r.BankAccountID != nil {
			id, err := uuid.Parse(*r.BankAccountID)
			if err == nil {
				acct, _ = h.BankAccts.FindByID(ctx, id)
			}
		}
		return h.Other.Disburse(ctx, acct, r.Amount.String(), r.ID().String())
	default:
		return gateway.RefundResult{}, shared.NewDomainError("VALIDATION_FAILED", "unknown refund method")
	}
}

func (h *ProcessRefundHandler) applyResult(r *refund.Request, result gateway.RefundResult) {
	if result.GatewayRefundID != "" {
		r.SetGatewayReference(r.GatewayType, result.GatewayRefundID)
	}
	r.GatewayRawResponse = result.RawResponse

	var target refund.Status
	switch result.Status {
	case gateway.StatusCompleted:
		target = refund.StatusCompleted
	case gateway.StatusFailed:
		target = refund.StatusFailed
	case gateway.StatusProcessing, gateway.StatusPending:
		target = refund.StatusGatewayPending
	default: // UNKNOWN requires a follow-up status check, never a silent mapping
		target = refund.StatusGatewayPending
	}
	if r.Status.CanTransition(target) {
		_ = r.Transition(target, "worker", "")
	}
}

func (h *ProcessRefundHandler) enqueueCheckGateway(ctx context.Context, r *refund.Request) error {
	payload, err := json.Marshal(queuemsg.ProcessRefundPayload{RefundID: r.ID().String()})
	if err != nil {
		return err
	}
	return h.Publisher.Publish(ctx, queuemsg.Message{
		Type:           queuemsg.TypeCheckGateway,
		Payload:        payload,
		IdempotencyKey: r.ID().String() + ":check",
		EnqueuedAt:     time.Now().UTC(),
		GroupKey:       r.ID().String(),
		CorrelationID:  r.CorrelationID,
	})
}

// CheckGatewayHandler implements CHECK_GATEWAY: poll the adapter for
// status and transition state. A terminal status already recorded by a
// webhook dominates: this handler never regresses a terminal refund.
type CheckGatewayHandler struct {
	Refunds     refund.Repository
	Gateways    gateway.Registry
	Credentials gateway.CredentialManager
	Locker      lock.Locker
	Publisher   queuemsg.Publisher
	Logger      *zap.Logger
	Lease       time.Duration
}

func (h *CheckGatewayHandler) Handle(ctx context.Context, msg queuemsg.Message) error {
	var payload queuemsg.ProcessRefundPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return shared.NewDomainError("VALIDATION_FAILED", "malformed CHECK_GATEWAY payload")
	}
	refundID, err := uuid.Parse(payload.RefundID)
	if err != nil {
		return shared.NewDomainError("VALIDATION_FAILED", "malformed refundId")
	}

	lease := h.Lease
	if lease <= 0 {
		lease = 10 * time.Second
	}

	return withLock(ctx, h.Locker, refundID, lease, func(ctx context.Context) error {
		r, err := h.Refunds.FindByID(ctx, refundID)
		if err != nil {
			return err
		}
		if r == nil {
			return shared.ErrNotFound
		}
		if r.Status.IsTerminal() {
			return nil // webhook terminal dominance: a late poll never regresses
		}
		if r.Status != refund.StatusGatewayPending && r.Status != refund.StatusGatewayError {
			return nil
		}
		if r.GatewayReference == nil {
			return nil
		}

		adapter, err := h.Gateways.Get(r.GatewayType)
		if err != nil {
			return err
		}
		creds, err := h.Credentials.Get(ctx, r.MerchantID, r.GatewayType)
		if err != nil {
			return err
		}
		spanCtx, span := startGatewaySpan(ctx, "gateway.check_refund_status", r)
		result, err := adapter.CheckRefundStatus(spanCtx, *r.GatewayReference, creds)
		endGatewaySpan(span, err)
		if err != nil {
			var gwErr *gateway.Error
			if asGatewayError(err, &gwErr) {
				r.RecordProcessingError(string(gwErr.Category), gwErr.Error(), gwErr.Retryable())
				if gwErr.Retryable() && r.Status.CanTransition(refund.StatusGatewayError) {
					_ = r.Transition(refund.StatusGatewayError, "worker", gwErr.Error())
				} else if !gwErr.Retryable() && r.Status.CanTransition(refund.StatusFailed) {
					_ = r.Transition(refund.StatusFailed, "worker", gwErr.Error())
				}
				_ = h.Refunds.Save(ctx, r)
			}
			return err
		}

		switch result.Status {
		case gateway.StatusCompleted:
			if r.Status.CanTransition(refund.StatusCompleted) {
				_ = r.Transition(refund.StatusCompleted, "worker", "")
			}
		case gateway.StatusFailed:
			if r.Status.CanTransition(refund.StatusFailed) {
				_ = r.Transition(refund.StatusFailed, "worker", result.ErrorMessage)
			}
		}
		return h.Refunds.Save(ctx, r)
	})
}

// ApprovalTickHandler implements APPROVAL_TICK: scan past-deadline
// approvals and advance them.
type ApprovalTickHandler struct {
	Engine          *approval.Engine
	Refunds         refund.Repository
	Locker          lock.Locker
	Publisher       queuemsg.Publisher
	EscalationAfter time.Duration
	Fallback        approval.FallbackAction
	Logger          *zap.Logger
}

func (h *ApprovalTickHandler) Handle(ctx context.Context, msg queuemsg.Message) error {
	results, err := h.Engine.Tick(ctx, h.EscalationAfter, h.Fallback)
	if err != nil {
		return err
	}
	for _, res := range results {
		if res.Finalized {
			approved := res.Approval.Status == approval.StatusApproved
			if derr := h.applyFinalDecision(ctx, res.Approval.RefundID, approved); derr != nil {
				h.Logger.Error("failed to apply final approval decision", zap.Error(derr))
			}
		}
		if res.Escalated {
			if nerr := h.enqueueNotify(ctx, res.Approval.RefundID.String(), res.Approval.ID().String()); nerr != nil {
				h.Logger.Error("failed to enqueue escalation notification", zap.Error(nerr))
			}
		}
	}
	return nil
}

func (h *ApprovalTickHandler) applyFinalDecision(ctx context.Context, refundID uuid.UUID, approved bool) error {
	lease := 10 * time.Second
	return withLock(ctx, h.Locker, refundID, lease, func(ctx context.Context) error {
		r, err := h.Refunds.FindByID(ctx, refundID)
		if err != nil {
			return err
		}
		if r == nil {
			return shared.ErrNotFound
		}
		var target refund.Status
		if approved {
			r.ApprovalStatus = refund.ApprovalApproved
			target = refund.StatusProcessing
		} else {
			r.ApprovalStatus = refund.ApprovalRejected
			target = refund.StatusRejected
		}
		if r.Status.CanTransition(target) {
			if err := r.Transition(target, "approval-engine", ""); err != nil {
				return err
			}
		}
		if err := h.Refunds.Save(ctx, r); err != nil {
			return err
		}
		if approved {
			payload, _ := json.Marshal(queuemsg.ProcessRefundPayload{RefundID: r.ID().String()})
			return h.Publisher.Publish(ctx, queuemsg.Message{
				Type: queuemsg.TypeProcessRefund, Payload: payload,
				IdempotencyKey: r.ID().String() + ":process-after-approval",
				EnqueuedAt:     time.Now().UTC(), GroupKey: r.ID().String(),
			})
		}
		return nil
	})
}

func (h *ApprovalTickHandler) enqueueNotify(ctx context.Context, refundID, approvalID string) error {
	payload, err := json.Marshal(queuemsg.NotifyPayload{Event: "APPROVAL_ESCALATED", RefundID: refundID, ApprovalID: approvalID})
	if err != nil {
		return err
	}
	return h.Publisher.Publish(ctx, queuemsg.Message{
		Type: queuemsg.TypeNotify, Payload: payload,
		IdempotencyKey: approvalID + ":escalated",
		EnqueuedAt:     time.Now().UTC(), GroupKey: "",
	})
}

// Notifier renders and dispatches one NOTIFY event; implemented by
// internal/application/notify.
type Notifier interface {
	Dispatch(ctx context.Context, payload queuemsg.NotifyPayload) error
}

// NotifyHandler implements NOTIFY: render template and dispatch.
type NotifyHandler struct {
	Notifier Notifier
}

func (h *NotifyHandler) Handle(ctx context.Context, msg queuemsg.Message) error {
	var payload queuemsg.NotifyPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return shared.NewDomainError("VALIDATION_FAILED", "malformed NOTIFY payload")
	}
	return h.Notifier.Dispatch(ctx, payload)
}
