package models

import (
	"time"

	"github.com/google/uuid"
)

// DeadLetterModel is the GORM row for one message the worker pipeline gave
// up retrying.
type DeadLetterModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type           string    `gorm:"size:32;index;not null"`
	Payload        []byte    `gorm:"type:jsonb"`
	IdempotencyKey string    `gorm:"size:255;index"`
	GroupKey       string    `gorm:"size:255;index"`
	CorrelationID  string    `gorm:"size:255"`
	Attempt        int
	Cause          string `gorm:"type:text"`
	ParkedAt       time.Time
}

// TableName pins the GORM table name.
func (DeadLetterModel) TableName() string { return "dead_letter_messages" }
