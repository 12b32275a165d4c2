package parameter

import (
	"time"

	"github.com/google/uuid"
)

// EntityType is a level of the Program→Bank→Organization→Merchant hierarchy.
type EntityType string

const (
	EntityProgram      EntityType = "PROGRAM"
	EntityBank         EntityType = "BANK"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityMerchant     EntityType = "MERCHANT"
)

// hierarchyOrder lists levels from most specific to least. Resolve does
// not walk this slice; it walks ascendingSpecificity (resolver.go), the
// reverse order.
var hierarchyOrder = []EntityType{EntityMerchant, EntityOrganization, EntityBank, EntityProgram}

// Parameter is one effective-dated record at a single hierarchy level.
type Parameter struct {
	ID            uuid.UUID
	Name          string
	EntityType    EntityType
	EntityID      string
	Value         Value
	EffectiveDate time.Time
	ExpirationDate *time.Time
	Overridable   bool
	Version       int
	CreatedAt     time.Time
	CreatedBy     string
}

// IsEffective reports whether the parameter is the effective record at t.
func (p Parameter) IsEffective(t time.Time) bool {
	if t.Before(p.EffectiveDate) {
		return false
	}
	if p.ExpirationDate != nil && !t.Before(*p.ExpirationDate) {
		return false
	}
	return true
}

// Rule is an optional validation constraint attached to a Definition.
type Rule struct {
	Kind   string // RANGE, PATTERN, ENUM
	Min    *float64
	Max    *float64
	Regex  string
	Values []string
}

// Definition declares a parameter's type, default, and validation rules.
// Writes that have no matching Definition fail PARAMETER_UNKNOWN; reads
// that find no effective record at any level fall back to Default.
type Definition struct {
	Name    string
	Type    DataType
	Default Value
	Rules   []Rule
}
