package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/gateway"
	"github.com/erp/refundengine/internal/domain/lock"
	"github.com/erp/refundengine/internal/domain/refund"
)

// WebhookHandler receives asynchronous refund-status notifications from
// integrated gateways, generalized to the uniform gateway.Adapter contract
// instead of one handler per vendor.
//
// Terminal dominance: a webhook-confirmed COMPLETED/FAILED status always
// wins over a later gateway poll, enforced by refund.Status.CanTransition
// refusing to move a terminal refund anywhere else.
type WebhookHandler struct {
	BaseHandler
	gateways gateway.Registry
	refunds  refund.Repository
	locker   lock.Locker
	secrets  map[string]string
	logger   *zap.Logger
}

// NewWebhookHandler wires a WebhookHandler. secrets maps gateway type to the
// shared webhook-signing secret used by ValidateWebhookSignature.
func NewWebhookHandler(gateways gateway.Registry, refunds refund.Repository, locker lock.Locker, secrets map[string]string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{gateways: gateways, refunds: refunds, locker: locker, secrets: secrets, logger: logger}
}

// Handle processes POST /webhooks/{gateway}.
func (h *WebhookHandler) Handle(c *gin.Context) {
	gatewayType := c.Param("gateway")
	adapter, err := h.gateways.Get(gatewayType)
	if err != nil {
		h.Error(c, http.StatusNotFound, "ERR_GATEWAY_NOT_CONFIGURED", "no adapter registered for gateway")
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "failed to read request body")
		return
	}
	// extractSignature's ALIPAY branch reads from c.Request.Body via
	// PostForm; restore it so that read doesn't see an already-drained body.
	c.Request.Body = io.NopCloser(bytes.NewReader(payload))

	signature := h.extractSignature(c, gatewayType)
	if !adapter.ValidateWebhookSignature(payload, signature, h.secrets[gatewayType]) {
		h.Error(c, http.StatusUnauthorized, "ERR_UNAUTHORIZED", "invalid webhook signature")
		return
	}

	events, err := adapter.ParseWebhookEvent(payload)
	if err != nil {
		h.BadRequest(c, "malformed webhook payload")
		return
	}

	failed := false
	for _, event := range events {
		if err := h.applyEvent(c.Request.Context(), gatewayType, event); err != nil {
			h.logger.Error("failed to apply webhook event",
				zap.String("gatewayType", gatewayType), zap.String("gatewayRefundId", event.GatewayRefundID), zap.Error(err))
			failed = true
		}
	}
	if failed {
		h.InternalError(c, "failed to apply webhook event")
		return
	}

	h.Success(c, gin.H{"received": len(events)})
}

func (h *WebhookHandler) applyEvent(ctx context.Context, gatewayType string, event gateway.NormalizedEvent) error {
	key := "refund:gateway-ref:" + gatewayType + ":" + event.GatewayRefundID
	token, err := h.locker.Acquire(ctx, key, 10*time.Second)
	if err != nil {
		return err
	}
	defer func() { _ = h.locker.Release(ctx, key, token) }()

	r, err := h.refunds.FindByGatewayReference(ctx, gatewayType, event.GatewayRefundID)
	if err != nil {
		return err
	}
	if r == nil {
		return nil // no matching refund yet; the dispatch path will set the reference once it does
	}
	if r.Status.IsTerminal() {
		return nil
	}

	r.GatewayRawResponse = event.Result.RawResponse
	switch event.Status {
	case gateway.StatusCompleted:
		if r.Status.CanTransition(refund.StatusCompleted) {
			if err := r.Transition(refund.StatusCompleted, "webhook", ""); err != nil {
				return err
			}
		}
	case gateway.StatusFailed:
		if r.Status.CanTransition(refund.StatusFailed) {
			if err := r.Transition(refund.StatusFailed, "webhook", event.Result.ErrorMessage); err != nil {
				return err
			}
		}
	case gateway.StatusProcessing, gateway.StatusPending:
		if r.Status.CanTransition(refund.StatusGatewayPending) {
			if err := r.Transition(refund.StatusGatewayPending, "webhook", ""); err != nil {
				return err
			}
		}
	}
	return h.refunds.Save(ctx, r)
}

func (h *WebhookHandler) extractSignature(c *gin.Context, gatewayType string) string {
	switch gatewayType {
	case "ALIPAY":
		return c.PostForm("sign")
	default:
		return c.GetHeader("X-Webhook-Signature")
	}
}
