// Package notify implements the Notification Dispatcher (C6): template
// rendering and multi-channel delivery. Channel delivery itself is an
// out-of-scope external collaborator; this package owns template selection
// and the dispatch fan-out.
package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/queuemsg"
)

// Channel delivers one rendered notification; concrete implementations
// (email, webhook, SMS) are out of scope for the core and are wired at
// startup by whatever owns the outer HTTP/notification surface.
type Channel interface {
	Name() string
	Send(ctx context.Context, subject, body string, data map[string]any) error
}

// Templates maps an event name to a subject/body template pair. Rendering
// is a plain fmt.Sprintf-style substitution; this is deliberately not a
// general templating engine.
type Templates map[string]Template

// Template is one event's rendering rule.
type Template struct {
	Subject string
	Body    string
}

// DefaultTemplates covers the event kinds the Worker Pipeline and Approval
// Engine emit.
func DefaultTemplates() Templates {
	return Templates{
		"APPROVAL_ESCALATED": {
			Subject: "Refund approval escalated",
			Body:    "Refund %s requires approval at a higher level.",
		},
		"REFUND_COMPLETED": {
			Subject: "Refund completed",
			Body:    "Refund %s has completed successfully.",
		},
		"REFUND_FAILED": {
			Subject: "Refund failed",
			Body:    "Refund %s failed to process.",
		},
	}
}

// Dispatcher renders a NotifyPayload against its Template and fans it out
// to every configured Channel.
type Dispatcher struct {
	templates Templates
	channels  []Channel
	logger    *zap.Logger
}

// NewDispatcher builds a Dispatcher.
func NewDispatcher(templates Templates, channels []Channel, logger *zap.Logger) *Dispatcher {
	if templates == nil {
		templates = DefaultTemplates()
	}
	return &Dispatcher{templates: templates, channels: channels, logger: logger}
}

// Dispatch renders payload's event and sends it on every channel,
// collecting but not stopping on per-channel delivery errors.
func (d *Dispatcher) Dispatch(ctx context.Context, payload queuemsg.NotifyPayload) error {
	tmpl, ok := d.templates[payload.Event]
	if !ok {
		d.logger.Warn("no template for notification event", zap.String("event", payload.Event))
		return nil
	}
	id := payload.RefundID
	if id == "" {
		id = payload.ApprovalID
	}
	body := fmt.Sprintf(tmpl.Body, id)

	var firstErr error
	for _, ch := range d.channels {
		if err := ch.Send(ctx, tmpl.Subject, body, payload.Data); err != nil {
			d.logger.Error("notification channel delivery failed",
				zap.String("channel", ch.Name()), zap.String("event", payload.Event), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
