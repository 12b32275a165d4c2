package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/erp/refundengine/internal/domain/parameter"
	"github.com/erp/refundengine/internal/infrastructure/persistence/models"
)

// GormParameterRepository implements parameter.Repository over GORM.
type GormParameterRepository struct {
	db *gorm.DB
}

// NewGormParameterRepository builds a GormParameterRepository.
func NewGormParameterRepository(db *gorm.DB) *GormParameterRepository {
	return &GormParameterRepository{db: db}
}

func (r *GormParameterRepository) FindEffective(ctx context.Context, name string, entityType parameter.EntityType, entityID string, t time.Time) (*parameter.Parameter, error) {
	var m models.ParameterModel
	err := r.db.WithContext(ctx).
		Where("name = ? AND entity_type = ? AND entity_id = ? AND effective_date <= ? AND (expiration_date IS NULL OR expiration_date > ?)",
			name, string(entityType), entityID, t, t).
		Order("effective_date desc").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var value parameter.Value
	if err := json.Unmarshal([]byte(m.ValueJSON), &value); err != nil {
		return nil, err
	}
	p := m.ToDomain(value)
	return &p, nil
}

func (r *GormParameterRepository) Save(ctx context.Context, p *parameter.Parameter) error {
	valueJSON, err := json.Marshal(p.Value)
	if err != nil {
		return err
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Version++
	m := models.ParameterModel{
		ID:             p.ID,
		Name:           p.Name,
		EntityType:     string(p.EntityType),
		EntityID:       p.EntityID,
		ValueJSON:      string(valueJSON),
		EffectiveDate:  p.EffectiveDate,
		ExpirationDate: p.ExpirationDate,
		Overridable:    p.Overridable,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		CreatedBy:      p.CreatedBy,
	}
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *GormParameterRepository) FindDefinition(ctx context.Context, name string) (*parameter.Definition, error) {
	var m models.DefinitionModel
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var def parameter.Value
	if m.DefaultJSON != "" {
		if err := json.Unmarshal([]byte(m.DefaultJSON), &def); err != nil {
			return nil, err
		}
	}
	var rules []parameter.Rule
	if m.RulesJSON != "" {
		if err := json.Unmarshal([]byte(m.RulesJSON), &rules); err != nil {
			return nil, err
		}
	}
	return &parameter.Definition{Name: m.Name, Type: parameter.DataType(m.Type), Default: def, Rules: rules}, nil
}

func (r *GormParameterRepository) SaveDefinition(ctx context.Context, d *parameter.Definition) error {
	defJSON, err := json.Marshal(d.Default)
	if err != nil {
		return err
	}
	rulesJSON, err := json.Marshal(d.Rules)
	if err != nil {
		return err
	}
	m := models.DefinitionModel{Name: d.Name, Type: string(d.Type), DefaultJSON: string(defJSON), RulesJSON: string(rulesJSON)}
	return r.db.WithContext(ctx).Save(&m).Error
}

func (r *GormParameterRepository) FindByEntity(ctx context.Context, entityType parameter.EntityType, entityID string) ([]parameter.Parameter, error) {
	var rows []models.ParameterModel
	if err := r.db.WithContext(ctx).Where("entity_type = ? AND entity_id = ?", string(entityType), entityID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]parameter.Parameter, 0, len(rows))
	for i := range rows {
		var value parameter.Value
		if err := json.Unmarshal([]byte(rows[i].ValueJSON), &value); err != nil {
			return nil, err
		}
		out = append(out, rows[i].ToDomain(value))
	}
	return out, nil
}
