package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/erp/refundengine/internal/domain/approval"
	"github.com/erp/refundengine/internal/infrastructure/persistence/models"
)

// GormRuleRepository implements approval.RuleRepository over GORM.
type GormRuleRepository struct {
	db *gorm.DB
}

// NewGormRuleRepository builds a GormRuleRepository.
func NewGormRuleRepository(db *gorm.DB) *GormRuleRepository {
	return &GormRuleRepository{db: db}
}

func (r *GormRuleRepository) FindByMerchant(ctx context.Context, merchantID string) ([]approval.Rule, error) {
	var rows []models.RuleModel
	if err := r.db.WithContext(ctx).Where("merchant_id = ?", merchantID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]approval.Rule, 0, len(rows))
	for i := range rows {
		rule, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}
