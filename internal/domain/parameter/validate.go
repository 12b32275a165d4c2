package parameter

import (
	"regexp"

	"github.com/erp/refundengine/internal/domain/shared"
)

// ErrParameterInvalidValue is returned when a written value fails its
// Definition's type or rule checks.
var ErrParameterInvalidValue = shared.NewDomainError("PARAMETER_INVALID_VALUE", "parameter value failed validation")

// validateAgainstDefinition enforces the type tag and the optional
// RANGE/PATTERN/ENUM rules declared in 4.C1.
func validateAgainstDefinition(v Value, def Definition) error {
	if v.DataType != def.Type {
		return shared.NewDomainError("PARAMETER_TYPE_MISMATCH",
			"value type "+string(v.DataType)+" does not match definition type "+string(def.Type))
	}
	for _, rule := range def.Rules {
		if err := applyRule(v, rule); err != nil {
			return err
		}
	}
	return nil
}

func applyRule(v Value, rule Rule) error {
	switch rule.Kind {
	case "RANGE":
		n, err := v.AsDecimal()
		if err != nil {
			return err
		}
		f, _ := n.Float64()
		if rule.Min != nil && f < *rule.Min {
			return ErrParameterInvalidValue
		}
		if rule.Max != nil && f > *rule.Max {
			return ErrParameterInvalidValue
		}
	case "PATTERN":
		s, err := v.AsString()
		if err != nil {
			return err
		}
		re, err := regexp.Compile(rule.Regex)
		if err != nil {
			return err
		}
		if !re.MatchString(s) {
			return ErrParameterInvalidValue
		}
	case "ENUM":
		s, err := v.AsString()
		if err != nil {
			return err
		}
		for _, allowed := range rule.Values {
			if allowed == s {
				return nil
			}
		}
		return ErrParameterInvalidValue
	}
	return nil
}
