package router

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/refundengine/internal/infrastructure/auth"
	"github.com/erp/refundengine/internal/interfaces/http/handler"
	"github.com/erp/refundengine/internal/interfaces/http/middleware"
)

// Handlers bundles every handler the HTTP surface exposes, the set New
// wires into route registrars.
type Handlers struct {
	Refund      *handler.RefundHandler
	BankAccount *handler.BankAccountHandler
	Parameter   *handler.ParameterHandler
	Approval    *handler.ApprovalHandler
	Webhook     *handler.WebhookHandler
	Auth        *auth.Service
}

// New builds the complete Router for the application, one
// RouteRegistrar per domain.
func New(engine *gin.Engine, h Handlers) *Router {
	r := NewRouter(engine)
	r.Register(refundRoutes(h.Refund))
	r.Register(bankAccountRoutes(h.BankAccount))
	r.Register(parameterRoutes(h.Parameter))
	r.Register(approvalRoutes(h.Approval, h.Auth))
	r.Register(webhookRoutes(h.Webhook))
	return r
}

func refundRoutes(h *handler.RefundHandler) *DomainGroup {
	g := NewDomainGroup("/refunds")
	g.GET("", h.List)
	g.GET("/statistics", h.Statistics)
	g.GET("/:id", h.Get)
	g.POST("", h.Create)
	g.PUT("/:id", h.Update)
	g.PUT("/:id/cancel", h.Cancel)
	return g
}

func bankAccountRoutes(h *handler.BankAccountHandler) *DomainGroup {
	g := NewDomainGroup("/bank-accounts")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.PUT("/:id/default", h.SetDefault)
	return g
}

func parameterRoutes(h *handler.ParameterHandler) *DomainGroup {
	g := NewDomainGroup("/parameters")
	g.GET("", h.Get)
	g.POST("", h.Write)
	return g
}

func approvalRoutes(h *handler.ApprovalHandler, authSvc *auth.Service) *DomainGroup {
	g := NewDomainGroup("/approvals")
	g.GET("/:id", h.Get)
	decide := g.Group("")
	decide.Use(middleware.RequireApproverAuth(authSvc))
	decide.PUT("/:id/decide", h.Decide)
	return g
}

func webhookRoutes(h *handler.WebhookHandler) *DomainGroup {
	g := NewDomainGroup("/webhooks")
	g.POST("/:gateway", h.Handle)
	return g
}
