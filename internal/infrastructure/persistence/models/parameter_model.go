package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/refundengine/internal/domain/parameter"
)

// ParameterModel is the GORM row for one effective-dated parameter record.
type ParameterModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name           string    `gorm:"size:128;index:idx_param_lookup,priority:1;not null"`
	EntityType     string    `gorm:"size:32;index:idx_param_lookup,priority:2;not null"`
	EntityID       string    `gorm:"size:128;index:idx_param_lookup,priority:3;not null"`
	ValueJSON      string    `gorm:"type:jsonb;not null"`
	EffectiveDate  time.Time `gorm:"not null"`
	ExpirationDate *time.Time
	Overridable    bool `gorm:"not null;default:true"`
	Version        int  `gorm:"not null;default:1"`
	CreatedAt      time.Time
	CreatedBy      string
}

func (ParameterModel) TableName() string { return "parameters" }

// DefinitionModel is the GORM row for a parameter's type/default/rules.
type DefinitionModel struct {
	Name      string `gorm:"size:128;primaryKey"`
	Type      string `gorm:"size:16;not null"`
	DefaultJSON string `gorm:"type:jsonb"`
	RulesJSON string `gorm:"type:jsonb"`
}

func (DefinitionModel) TableName() string { return "parameter_definitions" }

// ToDomain converts the row into a parameter.Parameter.
func (m *ParameterModel) ToDomain(value parameter.Value) parameter.Parameter {
	return parameter.Parameter{
		ID:             m.ID,
		Name:           m.Name,
		EntityType:     parameter.EntityType(m.EntityType),
		EntityID:       m.EntityID,
		Value:          value,
		EffectiveDate:  m.EffectiveDate,
		ExpirationDate: m.ExpirationDate,
		Overridable:    m.Overridable,
		Version:        m.Version,
		CreatedAt:      m.CreatedAt,
		CreatedBy:      m.CreatedBy,
	}
}
