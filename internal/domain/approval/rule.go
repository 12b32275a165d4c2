package approval

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Condition is evaluated against a refund's attributes to decide whether a
// Rule requires approval. Conditions are data, not closures, per design
// note §9's preference for declarative records over closure-laden
// validators.
type Condition struct {
	// Field is one of "amount", "reasonCode", "refundMethod".
	Field    string
	Operator string // "gte", "lte", "eq", "in"
	Decimal  decimal.Decimal
	String   string
	Strings  []string
}

// Evaluate reports whether the condition matches the given candidate
// values; exactly one of amount/reasonCode/refundMethod is consulted
// depending on c.Field.
func (c Condition) Evaluate(amount decimal.Decimal, reasonCode, refundMethod string) bool {
	switch c.Field {
	case "amount":
		switch c.Operator {
		case "gte":
			return amount.GreaterThanOrEqual(c.Decimal)
		case "lte":
			return amount.LessThanOrEqual(c.Decimal)
		case "eq":
			return amount.Equal(c.Decimal)
		}
	case "reasonCode":
		return evalString(c, reasonCode)
	case "refundMethod":
		return evalString(c, refundMethod)
	}
	return false
}

func evalString(c Condition, actual string) bool {
	switch c.Operator {
	case "eq":
		return actual == c.String
	case "in":
		for _, v := range c.Strings {
			if v == actual {
				return true
			}
		}
	}
	return false
}

// Rule specifies when approval is required and its escalation shape, per
// 4.C4: "(condition, requiredLevels[], escalationAfter)".
type Rule struct {
	ID              string
	MerchantID      string
	Condition       Condition
	RequiredLevels  []string
	EscalationAfter time.Duration
	Fallback        FallbackAction
}

// RuleRepository loads the configured rules for a merchant.
type RuleRepository interface {
	FindByMerchant(ctx context.Context, merchantID string) ([]Rule, error)
}

// Repository persists ApprovalRequest aggregates.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Request, error)
	FindByRefundID(ctx context.Context, refundID uuid.UUID) (*Request, error)
	FindPastDeadline(ctx context.Context, now time.Time) ([]Request, error)
	Save(ctx context.Context, r *Request) error
}
