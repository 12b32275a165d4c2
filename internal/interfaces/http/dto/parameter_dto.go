package dto

import "time"

// ParameterValueRequest is the tagged-sum wire shape for writing a value;
// exactly one of the typed fields is read, selected by dataType.
type ParameterValueRequest struct {
	DataType string         `json:"dataType" binding:"required,oneof=STRING NUMBER DECIMAL BOOLEAN OBJECT ARRAY"`
	Str      string         `json:"str,omitempty"`
	Num      float64        `json:"num,omitempty"`
	Dec      string         `json:"dec,omitempty"`
	Bool     bool           `json:"bool,omitempty"`
	Obj      map[string]any `json:"obj,omitempty"`
	Arr      []any          `json:"arr,omitempty"`
}

// WriteParameterRequest is the POST /parameters body: write one effective
// record at (name, entityType, entityId).
type WriteParameterRequest struct {
	Name           string                `json:"name" binding:"required"`
	EntityType     string                `json:"entityType" binding:"required,oneof=PROGRAM BANK ORGANIZATION MERCHANT"`
	EntityID       string                `json:"entityId" binding:"required"`
	Value          ParameterValueRequest `json:"value" binding:"required"`
	EffectiveDate  time.Time             `json:"effectiveDate"`
	ExpirationDate *time.Time            `json:"expirationDate,omitempty"`
	Overridable    bool                  `json:"overridable"`
	CreatedBy      string                `json:"createdBy,omitempty"`
}

// ResolvedParameterResponse is the GET /parameters response: the effective
// value for (name, merchantId) plus which hierarchy level produced it.
type ResolvedParameterResponse struct {
	Name       string `json:"name"`
	MerchantID string `json:"merchantId"`
	DataType   string `json:"dataType"`
	Value      any    `json:"value"`
	Source     string `json:"source"`
}
