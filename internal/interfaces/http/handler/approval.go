package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/application/refundmgr"
	"github.com/erp/refundengine/internal/domain/approval"
	"github.com/erp/refundengine/internal/interfaces/http/dto"
	"github.com/erp/refundengine/internal/interfaces/http/middleware"
)

// ApprovalHandler exposes the Approval Engine (4.C4) decide action. Mounted
// behind RequireApproverAuth: Decide is the only write an approver makes
// directly, everything else (evaluate on create, escalation ticks) runs
// inside the refund manager and the scheduler.
type ApprovalHandler struct {
	BaseHandler
	engine  *approval.Engine
	manager *refundmgr.Manager
	repo    approval.Repository
	logger  *zap.Logger
}

// NewApprovalHandler wires an ApprovalHandler.
func NewApprovalHandler(engine *approval.Engine, manager *refundmgr.Manager, repo approval.Repository, logger *zap.Logger) *ApprovalHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalHandler{engine: engine, manager: manager, repo: repo, logger: logger}
}

// Get handles GET /approvals/{id}.
func (h *ApprovalHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid approval id")
		return
	}
	req, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if req == nil {
		h.NotFound(c, "approval not found")
		return
	}
	h.Success(c, toApprovalResponse(req))
}

// Decide handles PUT /approvals/{id}/decide. The approver identity comes
// from the verified bearer token, never from the request body.
func (h *ApprovalHandler) Decide(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid approval id")
		return
	}
	claims := middleware.GetApproverClaims(c)
	if claims == nil {
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "missing approver identity")
		return
	}
	var req dto.DecideApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	decided, err := h.engine.Decide(c.Request.Context(), id, req.Approved, claims.Username, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if decided.Status == approval.StatusApproved || decided.Status == approval.StatusRejected {
		if _, err := h.manager.RecordDecision(c.Request.Context(), decided.RefundID, decided.Status == approval.StatusApproved); err != nil {
			h.logger.Error("failed to record approval decision on refund",
				zap.String("approvalId", decided.ID().String()), zap.Error(err))
		}
	}

	h.Success(c, toApprovalResponse(decided))
}

func toApprovalResponse(r *approval.Request) dto.ApprovalResponse {
	decisions := make([]dto.DecisionResponse, 0, len(r.Decisions))
	for _, d := range r.Decisions {
		decisions = append(decisions, dto.DecisionResponse{
			Level:     d.Level,
			Approver:  d.Approver,
			Approved:  d.Approved,
			Reason:    d.Reason,
			DecidedAt: d.DecidedAt,
		})
	}
	return dto.ApprovalResponse{
		ID:                 r.ID().String(),
		RefundID:           r.RefundID.String(),
		CurrentLevel:       r.CurrentLevel,
		RequiredLevels:     r.RequiredLevels,
		Decisions:          decisions,
		EscalationDeadline: r.EscalationDeadline,
		Status:             string(r.Status),
	}
}
