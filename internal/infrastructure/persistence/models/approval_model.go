package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/erp/refundengine/internal/domain/approval"
)

// ApprovalModel is the GORM row for an approval.Request aggregate.
type ApprovalModel struct {
	ID                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	RefundID           uuid.UUID `gorm:"type:uuid;index;not null"`
	CurrentLevel       string
	RequiredLevelsJSON string `gorm:"type:jsonb"`
	DecisionsJSON      string `gorm:"type:jsonb"`
	EscalationDeadline time.Time `gorm:"index"`
	Status             string    `gorm:"size:16;index"`
	Version            int       `gorm:"not null;default:1"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (ApprovalModel) TableName() string { return "approval_requests" }

// ToDomain converts the row into an approval.Request.
func (m *ApprovalModel) ToDomain() (*approval.Request, error) {
	var levels []string
	if m.RequiredLevelsJSON != "" {
		if err := json.Unmarshal([]byte(m.RequiredLevelsJSON), &levels); err != nil {
			return nil, err
		}
	}
	var decisions []approval.Decision
	if m.DecisionsJSON != "" {
		if err := json.Unmarshal([]byte(m.DecisionsJSON), &decisions); err != nil {
			return nil, err
		}
	}
	a := &approval.Request{
		RefundID:           m.RefundID,
		CurrentLevel:       m.CurrentLevel,
		RequiredLevels:     levels,
		Decisions:          decisions,
		EscalationDeadline: m.EscalationDeadline,
		Status:             approval.Status(m.Status),
	}
	a.BaseEntity.ID = m.ID
	a.BaseEntity.CreatedAt = m.CreatedAt
	a.BaseEntity.UpdatedAt = m.UpdatedAt
	a.Version = m.Version
	return a, nil
}

// ApprovalModelFromDomain builds a row from an approval.Request.
func ApprovalModelFromDomain(a *approval.Request) (*ApprovalModel, error) {
	levelsJSON, err := json.Marshal(a.RequiredLevels)
	if err != nil {
		return nil, err
	}
	decisionsJSON, err := json.Marshal(a.Decisions)
	if err != nil {
		return nil, err
	}
	return &ApprovalModel{
		ID:                 a.ID(),
		RefundID:           a.RefundID,
		CurrentLevel:       a.CurrentLevel,
		RequiredLevelsJSON: string(levelsJSON),
		DecisionsJSON:      string(decisionsJSON),
		EscalationDeadline: a.EscalationDeadline,
		Status:             string(a.Status),
		Version:            a.GetVersion(),
		CreatedAt:          a.GetCreatedAt(),
		UpdatedAt:          a.GetUpdatedAt(),
	}, nil
}
