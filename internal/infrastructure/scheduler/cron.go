package scheduler

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/erp/refundengine/internal/domain/queuemsg"
)

// CronScheduler fires the two periodic triggers the worker pipeline can't
// derive from an inbound message: the approval escalation tick and the
// gateway poll sweep. Each firing becomes a Job submitted to a Scheduler, so
// a transient publish failure gets the worker pool's existing retry/backoff
// rather than being silently dropped.
type CronScheduler struct {
	cron      *cron.Cron
	scheduler *Scheduler
	logger    *zap.Logger
}

// NewCronScheduler builds a CronScheduler over an already-constructed
// Scheduler (typically one wrapping a PublishExecutor).
func NewCronScheduler(scheduler *Scheduler, logger *zap.Logger) *CronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CronScheduler{
		cron:      cron.New(),
		scheduler: scheduler,
		logger:    logger,
	}
}

// AddApprovalTick registers an APPROVAL_TICK enqueue on spec (standard
// 5-field cron syntax). The handler side has no routing data to carry —
// it re-scans every approval past its escalation deadline on each tick.
func (c *CronScheduler) AddApprovalTick(spec string, maxRetries int) error {
	_, err := c.cron.AddFunc(spec, func() {
		c.submit(queuemsg.TypeApprovalTick, queuemsg.ApprovalTickPayload{}, "approval-tick", maxRetries)
	})
	return err
}

// AddGatewayPollSweep registers a CHECK_GATEWAY enqueue on spec for every
// refund id returned by lookup; lookup is invoked fresh on every firing so
// the sweep always reflects current AWAITING_GATEWAY state.
func (c *CronScheduler) AddGatewayPollSweep(spec string, lookup func() []string, maxRetries int) error {
	_, err := c.cron.AddFunc(spec, func() {
		for _, refundID := range lookup() {
			payload := queuemsg.ProcessRefundPayload{RefundID: refundID}
			c.submit(queuemsg.TypeCheckGateway, payload, refundID, maxRetries)
		}
	})
	return err
}

func (c *CronScheduler) submit(msgType queuemsg.Type, payload any, groupKey string, maxRetries int) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("cron marshal payload failed", zap.String("type", string(msgType)), zap.Error(err))
		return
	}

	msg := queuemsg.Message{
		Type:           msgType,
		Payload:        data,
		IdempotencyKey: uuid.New().String(),
		EnqueuedAt:     time.Now(),
		GroupKey:       groupKey,
	}

	if err := c.scheduler.SubmitJob(NewJob(msg, maxRetries)); err != nil {
		c.logger.Warn("cron submit job failed", zap.String("type", string(msgType)), zap.Error(err))
	}
}

// Start begins firing registered cron entries.
func (c *CronScheduler) Start() { c.cron.Start() }

// Stop halts firing; in-flight Scheduler jobs are unaffected.
func (c *CronScheduler) Stop() { c.cron.Stop() }
