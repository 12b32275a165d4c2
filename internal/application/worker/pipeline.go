// Package worker implements the Worker Pipeline (M2): dequeue, dispatch to
// per-message-kind handlers, and own retry/DLQ classification.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/gateway"
	"github.com/erp/refundengine/internal/domain/queuemsg"
	"github.com/erp/refundengine/internal/domain/shared"
)

// Handler processes one message kind.
type Handler interface {
	Handle(ctx context.Context, msg queuemsg.Message) error
}

// RetryConfig controls the exponential-backoff-with-jitter re-enqueue
// schedule from 4.M2: initial * factor^attempt, capped at maxAttempts.
type RetryConfig struct {
	Initial     time.Duration
	Factor      float64
	MaxAttempts int
	JitterFrac  float64
}

// DefaultRetryConfig is a conservative starting point: five attempts,
// doubling delay, small jitter to avoid thundering-herd republishes.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{Initial: time.Second, Factor: 2.0, MaxAttempts: 5, JitterFrac: 0.2}
}

func (c RetryConfig) delay(attempt int) time.Duration {
	backoff := float64(c.Initial) * math.Pow(c.Factor, float64(attempt))
	jitter := backoff * c.JitterFrac * (rand.Float64()*2 - 1)
	d := time.Duration(backoff + jitter)
	if d < 0 {
		d = c.Initial
	}
	return d
}

// Consumer is the inbound half of the queue: it delivers messages with
// per-group FIFO for PROCESS_REFUND/CHECK_GATEWAY and calls ack/nak per the
// handler's outcome.
type Consumer interface {
	// Consume blocks, delivering messages to handle until ctx is canceled.
	// A nil return from handle acks the message; any error is Nak'ed for
	// the transport's own redelivery. Pipeline.dispatch returns nil for a
	// terminal failure and after scheduling its own backoff republish, so
	// only a failed dead-letter park reaches the consumer as an error.
	Consume(ctx context.Context, handle func(ctx context.Context, msg queuemsg.Message) error) error
}

// DeadLetterSink records a message that exhausted retries.
type DeadLetterSink interface {
	Park(ctx context.Context, msg queuemsg.Message, cause error) error
}

// Pipeline dispatches messages by Type to registered Handlers and applies
// the retry/DLQ policy uniformly across message kinds.
type Pipeline struct {
	handlers   map[queuemsg.Type]Handler
	publisher  queuemsg.Publisher
	deadLetter DeadLetterSink
	retry      RetryConfig
	logger     *zap.Logger
}

// NewPipeline builds a Pipeline. Register handlers with RegisterHandler
// before calling Run.
func NewPipeline(publisher queuemsg.Publisher, deadLetter DeadLetterSink, retry RetryConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		handlers:   make(map[queuemsg.Type]Handler),
		publisher:  publisher,
		deadLetter: deadLetter,
		retry:      retry,
		logger:     logger,
	}
}

// RegisterHandler binds a Handler to a message Type.
func (p *Pipeline) RegisterHandler(t queuemsg.Type, h Handler) {
	p.handlers[t] = h
}

// Run drives consumer.Consume with the pipeline's dispatch-and-retry logic
// until ctx is canceled.
func (p *Pipeline) Run(ctx context.Context, consumer Consumer) error {
	return consumer.Consume(ctx, p.dispatch)
}

func (p *Pipeline) dispatch(ctx context.Context, msg queuemsg.Message) error {
	h, ok := p.handlers[msg.Type]
	if !ok {
		p.logger.Error("no handler registered for message type", zap.String("type", string(msg.Type)))
		return nil // ack and drop: an unknown type can never become processable
	}

	err := h.Handle(ctx, msg)
	if err == nil {
		return nil
	}

	if !isRetryable(err) {
		p.logger.Warn("terminal failure, not retrying",
			zap.String("type", string(msg.Type)), zap.String("groupKey", msg.GroupKey), zap.Error(err))
		return nil // ack: the handler already drove the refund to a terminal state
	}

	if msg.Attempt+1 >= p.retry.MaxAttempts {
		p.logger.Error("retries exhausted, moving to dead letter",
			zap.String("type", string(msg.Type)), zap.String("groupKey", msg.GroupKey), zap.Int("attempt", msg.Attempt))
		if dlErr := p.deadLetter.Park(ctx, msg, err); dlErr != nil {
			return dlErr
		}
		return nil
	}

	next := msg
	next.Attempt++
	next.EnqueuedAt = time.Now().UTC()
	if next.IdempotencyKey != "" {
		// The stream dedups republishes by Nats-Msg-Id; reusing msg's key
		// verbatim would make JetStream silently drop this retry. Scope it
		// to the attempt so each backoff republish gets through.
		next.IdempotencyKey = fmt.Sprintf("%s:retry%d", next.IdempotencyKey, next.Attempt)
	}
	delay := p.retry.delay(next.Attempt)
	go func() {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
			if pubErr := p.publisher.Publish(context.Background(), next); pubErr != nil {
				p.logger.Error("failed to re-enqueue retry", zap.Error(pubErr))
			}
		case <-ctx.Done():
		}
	}()
	// Ack the original delivery: the backoff republish above is the only
	// retry path. Returning err here as well would also trigger the
	// consumer's own Nak-driven JetStream redelivery, running both
	// mechanisms against the same failure.
	return nil
}

// isRetryable classifies an error per 4.M2/4.C2: gateway errors carry their
// own Retryable() bit; domain conflict/invalid-state errors are terminal;
// anything else (network, deserialize, unexpected) is treated as
// retryable so transient infrastructure failures get a second chance.
func isRetryable(err error) bool {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return gwErr.Retryable()
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case "INVALID_STATE_TRANSITION", "VALIDATION_FAILED", "NOT_FOUND", "INVALID_STATE", "INVALID_INPUT":
			return false
		}
	}
	return true
}
