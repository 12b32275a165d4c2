package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/refundengine/internal/domain/approval"
	"github.com/erp/refundengine/internal/domain/shared"
	"github.com/erp/refundengine/internal/infrastructure/persistence/models"
)

// GormApprovalRepository implements approval.Repository over GORM.
type GormApprovalRepository struct {
	db *gorm.DB
}

// NewGormApprovalRepository builds a GormApprovalRepository.
func NewGormApprovalRepository(db *gorm.DB) *GormApprovalRepository {
	return &GormApprovalRepository{db: db}
}

func (r *GormApprovalRepository) FindByID(ctx context.Context, id uuid.UUID) (*approval.Request, error) {
	var m models.ApprovalModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain()
}

func (r *GormApprovalRepository) FindByRefundID(ctx context.Context, refundID uuid.UUID) (*approval.Request, error) {
	var m models.ApprovalModel
	err := r.db.WithContext(ctx).Where("refund_id = ?", refundID).Order("created_at desc").First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m.ToDomain()
}

func (r *GormApprovalRepository) FindPastDeadline(ctx context.Context, now time.Time) ([]approval.Request, error) {
	var rows []models.ApprovalModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND escalation_deadline <= ?", string(approval.StatusPending), now).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]approval.Request, 0, len(rows))
	for i := range rows {
		a, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// Save inserts a new approval on first persist, else performs an
// optimistic-lock update conditioned on the previously loaded version,
// mirroring GormRefundRepository.Save.
func (r *GormApprovalRepository) Save(ctx context.Context, a *approval.Request) error {
	m, err := models.ApprovalModelFromDomain(a)
	if err != nil {
		return err
	}

	if a.GetVersion() <= 1 {
		var existing models.ApprovalModel
		err := r.db.WithContext(ctx).Where("id = ?", m.ID).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(m).Error
		}
		if err != nil {
			return err
		}
	}

	priorVersion := m.Version - 1
	result := r.db.WithContext(ctx).Model(&models.ApprovalModel{}).
		Where("id = ? AND version = ?", m.ID, priorVersion).
		Updates(map[string]interface{}{
			"current_level":        m.CurrentLevel,
			"required_levels_json": m.RequiredLevelsJSON,
			"decisions_json":       m.DecisionsJSON,
			"escalation_deadline":  m.EscalationDeadline,
			"status":               m.Status,
			"version":              m.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}
