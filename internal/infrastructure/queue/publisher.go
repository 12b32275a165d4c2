package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/queuemsg"
)

// Publisher implements queuemsg.Publisher over a JetStream stream:
// marshal-then-Publish with structured logging around the call.
type Publisher struct {
	js     *JetStream
	logger *zap.Logger
}

// NewPublisher builds a Publisher over an already-connected JetStream.
func NewPublisher(js *JetStream, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{js: js, logger: logger}
}

// Publish marshals msg and publishes it to the subject for its
// (Type, GroupKey) pair, using IdempotencyKey as the Nats-Msg-Id so a
// redelivered publish is deduplicated by the stream itself.
func (p *Publisher) Publish(ctx context.Context, msg queuemsg.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue publish: marshal: %w", err)
	}

	subj := subject(string(msg.Type), msg.GroupKey)
	natsMsg := &nats.Msg{Subject: subj, Data: data}
	if msg.IdempotencyKey != "" {
		natsMsg.Header = nats.Header{"Nats-Msg-Id": []string{msg.IdempotencyKey}}
	}

	_, err = p.js.js.PublishMsg(ctx, natsMsg)
	if err != nil {
		p.logger.Error("queue publish failed",
			zap.String("subject", subj),
			zap.String("type", string(msg.Type)),
			zap.Error(err))
		return fmt.Errorf("queue publish: %w", err)
	}

	p.logger.Debug("queue message published",
		zap.String("subject", subj),
		zap.String("type", string(msg.Type)),
		zap.String("idempotencyKey", msg.IdempotencyKey))
	return nil
}
