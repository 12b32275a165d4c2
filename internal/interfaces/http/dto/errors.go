package dto

import "net/http"

// Error code constants. Format: ERR_<CATEGORY>_<DESCRIPTION>.

const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"

	ErrCodeValidation        = "ERR_VALIDATION"
	ErrCodeValidationFailed  = "ERR_VALIDATION_FAILED"
	ErrCodeBadRequest        = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput      = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON       = "ERR_INVALID_JSON"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	ErrCodeInvalidState           = "ERR_INVALID_STATE"
	ErrCodeInvalidStateTransition = "ERR_INVALID_STATE_TRANSITION"
	ErrCodeInsufficientBalance    = "ERR_INSUFFICIENT_BALANCE"

	ErrCodeParameterUnknown      = "ERR_PARAMETER_UNKNOWN"
	ErrCodeParameterInvalidType  = "ERR_PARAMETER_INVALID_TYPE"
	ErrCodeParameterInvalidValue = "ERR_PARAMETER_INVALID_VALUE"

	ErrCodeGatewayNotConfigured = "ERR_GATEWAY_NOT_CONFIGURED"
	ErrCodeLockTimeout          = "ERR_LOCK_TIMEOUT"
	ErrCodeLockLost             = "ERR_LOCK_LOST"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// httpStatusByCode maps our own ERR_* codes to HTTP status.
var httpStatusByCode = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:       http.StatusBadRequest,
	ErrCodeValidationFailed: http.StatusUnprocessableEntity,
	ErrCodeBadRequest:       http.StatusBadRequest,
	ErrCodeInvalidInput:     http.StatusBadRequest,
	ErrCodeInvalidJSON:      http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidState:           http.StatusUnprocessableEntity,
	ErrCodeInvalidStateTransition: http.StatusUnprocessableEntity,
	ErrCodeInsufficientBalance:    http.StatusUnprocessableEntity,

	ErrCodeParameterUnknown:      http.StatusNotFound,
	ErrCodeParameterInvalidType:  http.StatusBadRequest,
	ErrCodeParameterInvalidValue: http.StatusBadRequest,

	ErrCodeGatewayNotConfigured: http.StatusUnprocessableEntity,
	ErrCodeLockTimeout:          http.StatusConflict,
	ErrCodeLockLost:             http.StatusConflict,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// domainCodeNormalization maps a shared.DomainError.Code (the bare,
// underscore-only codes domain packages raise, e.g. "NOT_FOUND") onto our
// own ERR_-prefixed wire codes.
var domainCodeNormalization = map[string]string{
	"NOT_FOUND":                 ErrCodeNotFound,
	"ALREADY_EXISTS":            ErrCodeAlreadyExists,
	"INVALID_INPUT":             ErrCodeInvalidInput,
	"CONCURRENCY_CONFLICT":      ErrCodeConcurrencyConflict,
	"UNAUTHORIZED":              ErrCodeUnauthorized,
	"FORBIDDEN":                 ErrCodeForbidden,
	"INVALID_STATE":             ErrCodeInvalidState,
	"INVALID_STATE_TRANSITION":  ErrCodeInvalidStateTransition,
	"INSUFFICIENT_BALANCE":      ErrCodeInsufficientBalance,
	"VALIDATION_FAILED":         ErrCodeValidationFailed,
	"PARAMETER_UNKNOWN":         ErrCodeParameterUnknown,
	"PARAMETER_INVALID_TYPE":    ErrCodeParameterInvalidType,
	"PARAMETER_TYPE_MISMATCH":   ErrCodeParameterInvalidType,
	"PARAMETER_INVALID_VALUE":   ErrCodeParameterInvalidValue,
	"GATEWAY_NOT_CONFIGURED":    ErrCodeGatewayNotConfigured,
	"LOCK_TIMEOUT":              ErrCodeLockTimeout,
	"LOCK_LOST":                 ErrCodeLockLost,
}

// NormalizeErrorCode converts a bare domain error code into our wire code.
// Codes already in ERR_ form, or unrecognized, are returned unchanged.
func NormalizeErrorCode(code string) string {
	if normalized, ok := domainCodeNormalization[code]; ok {
		return normalized
	}
	return code
}

// GetHTTPStatus returns the HTTP status for a wire error code, defaulting to
// 500 for anything unmapped.
func GetHTTPStatus(code string) int {
	if status, ok := httpStatusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
