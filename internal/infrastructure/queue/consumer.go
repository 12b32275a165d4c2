package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/queuemsg"
)

// ConsumerConfig shapes the durable JetStream consumer: MaxDeliver and
// AckWait stand in for the worker pipeline's maxAttempts and visibility
// timeout.
type ConsumerConfig struct {
	Name       string
	MaxDeliver int
	AckWait    time.Duration
}

// Consumer implements worker.Consumer by subscribing to every subject
// under subjectPrefix and replaying queuemsg.Message envelopes to the
// pipeline's dispatch function via an Ack/Nak loop.
type Consumer struct {
	js     *JetStream
	cfg    ConsumerConfig
	logger *zap.Logger
}

// NewConsumer builds a Consumer over an already-connected JetStream.
func NewConsumer(js *JetStream, cfg ConsumerConfig, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxDeliver == 0 {
		cfg.MaxDeliver = 5
	}
	if cfg.AckWait == 0 {
		cfg.AckWait = 30 * time.Second
	}
	return &Consumer{js: js, cfg: cfg, logger: logger}
}

// Consume creates (or reuses) a durable consumer over subjectPrefix+".>"
// and invokes handle for every delivered message, Ack'ing on nil error and
// Nak'ing otherwise so JetStream's own MaxDeliver/AckWait redelivery takes
// over — the pipeline's own retry/backoff logic still runs inside handle
// before that, via its dispatch wrapper.
func (c *Consumer) Consume(ctx context.Context, handle func(ctx context.Context, msg queuemsg.Message) error) error {
	consumerCfg := jetstream.ConsumerConfig{
		Name:          c.cfg.Name,
		Durable:       c.cfg.Name,
		FilterSubjects: []string{subjectPrefix + ".>"},
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    c.cfg.MaxDeliver,
		AckWait:       c.cfg.AckWait,
	}

	jsConsumer, err := c.js.js.CreateOrUpdateConsumer(ctx, StreamName, consumerCfg)
	if err != nil {
		return fmt.Errorf("queue consume: CreateOrUpdateConsumer: %w", err)
	}

	consumeCtx, err := jsConsumer.Consume(func(m jetstream.Msg) {
		var msg queuemsg.Message
		if err := json.Unmarshal(m.Data(), &msg); err != nil {
			c.logger.Error("queue message unmarshal failed", zap.Error(err))
			_ = m.Term()
			return
		}

		if meta, err := m.Metadata(); err == nil {
			msg.Attempt = int(meta.NumDelivered) - 1
		}

		if err := handle(ctx, msg); err != nil {
			c.logger.Warn("queue handler failed, nacking",
				zap.String("type", string(msg.Type)),
				zap.Error(err))
			_ = m.Nak()
			return
		}
		_ = m.Ack()
	})
	if err != nil {
		return fmt.Errorf("queue consume: Consume: %w", err)
	}
	defer consumeCtx.Stop()

	<-ctx.Done()
	return ctx.Err()
}
