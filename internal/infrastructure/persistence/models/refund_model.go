// Package models holds GORM row types and their ToDomain/FromDomain
// conversions.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/refund"
)

// RefundModel is the GORM row for a refund.Request aggregate.
type RefundModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	TransactionID string    `gorm:"index;not null"`
	MerchantID    string    `gorm:"index;not null"`
	CustomerID    *string
	BankAccountID *string

	Amount   decimal.Decimal `gorm:"type:numeric(20,4);not null"`
	Currency string          `gorm:"size:3;not null"`

	RefundMethod string `gorm:"size:32;not null"`
	Reason       string
	ReasonCode   string `gorm:"size:64"`

	Status         string `gorm:"size:32;index;not null"`
	ApprovalStatus string `gorm:"size:32;not null"`

	GatewayType        string `gorm:"size:32"`
	GatewayReference   *string
	GatewayRawResponse string `gorm:"type:text"`

	ProcessedAt             *time.Time
	CompletedAt             *time.Time
	EstimatedCompletionDate *time.Time

	StatusHistoryJSON    string `gorm:"type:jsonb"`
	ProcessingErrorsJSON string `gorm:"type:jsonb"`
	RetryCount           int

	// The real uniqueness constraint on (merchant_id, transaction_id,
	// client_idempotency_key) is a partial unique index defined in the SQL
	// migrations, not this tag; there is no AutoMigrate call in this
	// codebase, so GORM struct tags never create schema on their own.
	ClientIdempotencyKey string
	CorrelationID        string

	MetadataJSON string `gorm:"type:jsonb"`

	Version   int `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the GORM table name.
func (RefundModel) TableName() string { return "refund_requests" }

// ToDomain converts the row into a refund.Request aggregate.
func (m *RefundModel) ToDomain() (*refund.Request, error) {
	var history []refund.StatusHistoryEntry
	if m.StatusHistoryJSON != "" {
		if err := json.Unmarshal([]byte(m.StatusHistoryJSON), &history); err != nil {
			return nil, err
		}
	}
	var procErrs []refund.ProcessingError
	if m.ProcessingErrorsJSON != "" {
		if err := json.Unmarshal([]byte(m.ProcessingErrorsJSON), &procErrs); err != nil {
			return nil, err
		}
	}
	metadata := make(map[string]any)
	if m.MetadataJSON != "" {
		if err := json.Unmarshal([]byte(m.MetadataJSON), &metadata); err != nil {
			return nil, err
		}
	}

	r := &refund.Request{
		TransactionID:           m.TransactionID,
		MerchantID:               m.MerchantID,
		CustomerID:               m.CustomerID,
		BankAccountID:            m.BankAccountID,
		Amount:                   m.Amount,
		Currency:                 m.Currency,
		RefundMethod:             refund.Method(m.RefundMethod),
		Reason:                   m.Reason,
		ReasonCode:               m.ReasonCode,
		Status:                   refund.Status(m.Status),
		ApprovalStatus:           refund.ApprovalStatus(m.ApprovalStatus),
		GatewayType:              m.GatewayType,
		GatewayReference:         m.GatewayReference,
		GatewayRawResponse:       m.GatewayRawResponse,
		ProcessedAt:              m.ProcessedAt,
		CompletedAt:              m.CompletedAt,
		EstimatedCompletionDate:  m.EstimatedCompletionDate,
		StatusHistory:            history,
		ProcessingErrors:         procErrs,
		RetryCount:               m.RetryCount,
		ClientIdempotencyKey:     m.ClientIdempotencyKey,
		CorrelationID:            m.CorrelationID,
		Metadata:                 metadata,
	}
	r.BaseEntity.ID = m.ID
	r.BaseEntity.CreatedAt = m.CreatedAt
	r.BaseEntity.UpdatedAt = m.UpdatedAt
	r.Version = m.Version
	return r, nil
}

// RefundModelFromDomain builds a row from a refund.Request aggregate.
func RefundModelFromDomain(r *refund.Request) (*RefundModel, error) {
	historyJSON, err := json.Marshal(r.StatusHistory)
	if err != nil {
		return nil, err
	}
	errsJSON, err := json.Marshal(r.ProcessingErrors)
	if err != nil {
		return nil, err
	}
	metaJSON, err := json.Marshal(r.Metadata)
	if err != nil {
		return nil, err
	}
	return &RefundModel{
		ID:                      r.ID(),
		TransactionID:           r.TransactionID,
		MerchantID:              r.MerchantID,
		CustomerID:              r.CustomerID,
		BankAccountID:           r.BankAccountID,
		Amount:                  r.Amount,
		Currency:                r.Currency,
		RefundMethod:            string(r.RefundMethod),
		Reason:                  r.Reason,
		ReasonCode:              r.ReasonCode,
		Status:                  string(r.Status),
		ApprovalStatus:          string(r.ApprovalStatus),
		GatewayType:             r.GatewayType,
		GatewayReference:        r.GatewayReference,
		GatewayRawResponse:      r.GatewayRawResponse,
		ProcessedAt:             r.ProcessedAt,
		CompletedAt:             r.CompletedAt,
		EstimatedCompletionDate: r.EstimatedCompletionDate,
		StatusHistoryJSON:       string(historyJSON),
		ProcessingErrorsJSON:    string(errsJSON),
		RetryCount:              r.RetryCount,
		ClientIdempotencyKey:    r.ClientIdempotencyKey,
		CorrelationID:           r.CorrelationID,
		MetadataJSON:            string(metaJSON),
		Version:                 r.GetVersion(),
		CreatedAt:               r.GetCreatedAt(),
		UpdatedAt:               r.GetUpdatedAt(),
	}, nil
}
