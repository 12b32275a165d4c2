package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/refundengine/internal/domain/queuemsg"
	"github.com/erp/refundengine/internal/infrastructure/persistence/models"
)

// GormDeadLetterSink implements worker.DeadLetterSink by parking exhausted
// messages in a table instead of discarding them, so an operator can
// inspect and manually replay a PROCESS_REFUND or CHECK_GATEWAY message
// that never got past the pipeline's retry budget.
type GormDeadLetterSink struct {
	db *gorm.DB
}

// NewGormDeadLetterSink builds a GormDeadLetterSink.
func NewGormDeadLetterSink(db *gorm.DB) *GormDeadLetterSink {
	return &GormDeadLetterSink{db: db}
}

// Park persists msg and the error that exhausted its retries.
func (s *GormDeadLetterSink) Park(ctx context.Context, msg queuemsg.Message, cause error) error {
	causeMsg := ""
	if cause != nil {
		causeMsg = cause.Error()
	}
	m := models.DeadLetterModel{
		ID:             uuid.New(),
		Type:           string(msg.Type),
		Payload:        []byte(msg.Payload),
		IdempotencyKey: msg.IdempotencyKey,
		GroupKey:       msg.GroupKey,
		CorrelationID:  msg.CorrelationID,
		Attempt:        msg.Attempt,
		Cause:          causeMsg,
		ParkedAt:       time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Create(&m).Error
}
