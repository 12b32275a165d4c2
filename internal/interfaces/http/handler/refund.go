package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/application/refundmgr"
	"github.com/erp/refundengine/internal/domain/refund"
	"github.com/erp/refundengine/internal/domain/shared"
	"github.com/erp/refundengine/internal/interfaces/http/dto"
)

// RefundHandler exposes the refund manager over HTTP: create/list/get/
// update/cancel plus a statistics rollup.
type RefundHandler struct {
	BaseHandler
	manager *refundmgr.Manager
	repo    refund.Repository
}

// NewRefundHandler wires a RefundHandler.
func NewRefundHandler(manager *refundmgr.Manager, repo refund.Repository) *RefundHandler {
	return &RefundHandler{manager: manager, repo: repo}
}

// Create handles POST /refunds.
func (h *RefundHandler) Create(c *gin.Context) {
	var req dto.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		h.BadRequest(c, "amount must be a valid decimal string")
		return
	}

	r, err := h.manager.Create(c.Request.Context(), refundmgr.CreateRequest{
		TransactionID:        req.TransactionID,
		MerchantID:           req.MerchantID,
		CustomerID:           req.CustomerID,
		BankAccountID:        req.BankAccountID,
		Amount:               amount,
		Currency:             req.Currency,
		RefundMethod:         refund.Method(req.RefundMethod),
		Reason:               req.Reason,
		ReasonCode:           req.ReasonCode,
		ClientIdempotencyKey: req.ClientIdempotencyKey,
		CorrelationID:        c.GetHeader("X-Correlation-ID"),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, toRefundResponse(r))
}

// List handles GET /refunds.
func (h *RefundHandler) List(c *gin.Context) {
	listReq := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&listReq); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := shared.Filter{
		Page:     listReq.Page,
		PageSize: listReq.PageSize,
		OrderBy:  listReq.OrderBy,
		OrderDir: listReq.OrderDir,
		Search:   listReq.Search,
	}
	merchantID := c.Query("merchantId")
	status := c.Query("status")

	records, total, err := h.repo.FindAll(c.Request.Context(), filter, merchantID, status)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]dto.RefundResponse, 0, len(records))
	for i := range records {
		out = append(out, toRefundResponse(&records[i]))
	}
	h.SuccessWithMeta(c, out, total, listReq.Page, listReq.PageSize)
}

// Get handles GET /refunds/{id}.
func (h *RefundHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid refund id")
		return
	}
	r, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if r == nil {
		h.NotFound(c, "refund not found")
		return
	}
	h.Success(c, toRefundResponse(r))
}

// Update handles PUT /refunds/{id}.
func (h *RefundHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid refund id")
		return
	}
	var req dto.UpdateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	patch := refundmgr.UpdatePatch{Reason: req.Reason, ReasonCode: req.ReasonCode}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			h.BadRequest(c, "amount must be a valid decimal string")
			return
		}
		patch.Amount = &amount
	}

	r, err := h.manager.Update(c.Request.Context(), id, patch)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRefundResponse(r))
}

// Cancel handles PUT /refunds/{id}/cancel.
func (h *RefundHandler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "invalid refund id")
		return
	}
	var req dto.CancelRefundRequest
	_ = c.ShouldBindJSON(&req)

	r, err := h.manager.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toRefundResponse(r))
}

// Statistics handles GET /refunds/statistics?merchantId=....
func (h *RefundHandler) Statistics(c *gin.Context) {
	merchantID := c.Query("merchantId")
	if merchantID == "" {
		h.BadRequest(c, "merchantId is required")
		return
	}
	counts, err := h.repo.CountByStatus(c.Request.Context(), merchantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	total, err := h.repo.SumByMerchant(c.Request.Context(), merchantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	byStatus := make(map[string]int64, len(counts))
	for status, n := range counts {
		byStatus[string(status)] = n
	}
	h.Success(c, dto.RefundStatisticsResponse{
		MerchantID:    merchantID,
		CountByStatus: byStatus,
		TotalRefunded: total.String(),
	})
}

func toRefundResponse(r *refund.Request) dto.RefundResponse {
	history := make([]dto.StatusHistoryEntryResponse, 0, len(r.StatusHistory))
	for _, h := range r.StatusHistory {
		history = append(history, dto.StatusHistoryEntryResponse{
			FromStatus: string(h.FromStatus),
			ToStatus:   string(h.ToStatus),
			Actor:      h.Actor,
			Reason:     h.Reason,
			OccurredAt: h.OccurredAt,
		})
	}
	return dto.RefundResponse{
		ID:                      r.ID().String(),
		TransactionID:           r.TransactionID,
		MerchantID:              r.MerchantID,
		CustomerID:              r.CustomerID,
		BankAccountID:           r.BankAccountID,
		Amount:                  r.Amount.String(),
		Currency:                r.Currency,
		RefundMethod:            string(r.RefundMethod),
		Reason:                  r.Reason,
		ReasonCode:              r.ReasonCode,
		Status:                  string(r.Status),
		ApprovalStatus:          string(r.ApprovalStatus),
		GatewayType:             r.GatewayType,
		GatewayReference:        r.GatewayReference,
		ProcessedAt:             r.ProcessedAt,
		CompletedAt:             r.CompletedAt,
		EstimatedCompletionDate: r.EstimatedCompletionDate,
		RetryCount:              r.RetryCount,
		CorrelationID:           r.CorrelationID,
		StatusHistory:           history,
		Version:                 r.GetVersion(),
	}
}
