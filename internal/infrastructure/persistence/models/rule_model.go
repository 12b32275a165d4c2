package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/approval"
)

// RuleModel is the GORM row for a configured approval Rule.
type RuleModel struct {
	ID                 string `gorm:"size:64;primaryKey"`
	MerchantID          string `gorm:"index;not null"`
	ConditionField      string `gorm:"size:32"`
	ConditionOperator   string `gorm:"size:8"`
	ConditionDecimal    decimal.Decimal `gorm:"type:numeric(20,4)"`
	ConditionString     string          `gorm:"size:64"`
	ConditionStringsJSON string         `gorm:"type:jsonb"`
	RequiredLevelsJSON  string `gorm:"type:jsonb"`
	EscalationAfterSecs int64
	Fallback            string `gorm:"size:16"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (RuleModel) TableName() string { return "approval_rules" }

// ToDomain converts the row into an approval.Rule.
func (m *RuleModel) ToDomain() (approval.Rule, error) {
	var strs []string
	if m.ConditionStringsJSON != "" {
		if err := json.Unmarshal([]byte(m.ConditionStringsJSON), &strs); err != nil {
			return approval.Rule{}, err
		}
	}
	var levels []string
	if m.RequiredLevelsJSON != "" {
		if err := json.Unmarshal([]byte(m.RequiredLevelsJSON), &levels); err != nil {
			return approval.Rule{}, err
		}
	}
	return approval.Rule{
		ID:         m.ID,
		MerchantID: m.MerchantID,
		Condition: approval.Condition{
			Field:    m.ConditionField,
			Operator: m.ConditionOperator,
			Decimal:  m.ConditionDecimal,
			String:   m.ConditionString,
			Strings:  strs,
		},
		RequiredLevels:  levels,
		EscalationAfter: time.Duration(m.EscalationAfterSecs) * time.Second,
		Fallback:        approval.FallbackAction(m.Fallback),
	}, nil
}

// RuleModelFromDomain builds a row from an approval.Rule.
func RuleModelFromDomain(r approval.Rule) (*RuleModel, error) {
	strsJSON, err := json.Marshal(r.Condition.Strings)
	if err != nil {
		return nil, err
	}
	levelsJSON, err := json.Marshal(r.RequiredLevels)
	if err != nil {
		return nil, err
	}
	return &RuleModel{
		ID:                   r.ID,
		MerchantID:           r.MerchantID,
		ConditionField:       r.Condition.Field,
		ConditionOperator:    r.Condition.Operator,
		ConditionDecimal:     r.Condition.Decimal,
		ConditionString:      r.Condition.String,
		ConditionStringsJSON: string(strsJSON),
		RequiredLevelsJSON:   string(levelsJSON),
		EscalationAfterSecs:  int64(r.EscalationAfter / time.Second),
		Fallback:             string(r.Fallback),
	}, nil
}
