package parameter

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/erp/refundengine/internal/domain/shared"
)

// DataType tags the dynamic value carried by a Parameter, per 4.C1's
// validation rules and design note §9 (tagged sum, never native float for
// decimals).
type DataType string

const (
	TypeString  DataType = "STRING"
	TypeNumber  DataType = "NUMBER"
	TypeDecimal DataType = "DECIMAL"
	TypeBoolean DataType = "BOOLEAN"
	TypeObject  DataType = "OBJECT"
	TypeArray   DataType = "ARRAY"
)

// Value is a tagged-sum parameter value. Exactly one of the typed fields is
// populated, selected by DataType; Decimal values always use
// shopspring/decimal to preserve monetary exactness.
type Value struct {
	DataType DataType        `json:"dataType"`
	Str      string          `json:"str,omitempty"`
	Num      float64         `json:"num,omitempty"`
	Dec      decimal.Decimal `json:"dec,omitempty"`
	Bool     bool            `json:"bool,omitempty"`
	Obj      map[string]any  `json:"obj,omitempty"`
	Arr      []any           `json:"arr,omitempty"`
}

// NewStringValue builds a STRING-tagged Value.
func NewStringValue(s string) Value { return Value{DataType: TypeString, Str: s} }

// NewNumberValue builds a NUMBER-tagged Value.
func NewNumberValue(n float64) Value { return Value{DataType: TypeNumber, Num: n} }

// NewDecimalValue builds a DECIMAL-tagged Value.
func NewDecimalValue(d decimal.Decimal) Value { return Value{DataType: TypeDecimal, Dec: d} }

// NewBoolValue builds a BOOLEAN-tagged Value.
func NewBoolValue(b bool) Value { return Value{DataType: TypeBoolean, Bool: b} }

// NewObjectValue builds an OBJECT-tagged Value.
func NewObjectValue(o map[string]any) Value { return Value{DataType: TypeObject, Obj: o} }

// NewArrayValue builds an ARRAY-tagged Value.
func NewArrayValue(a []any) Value { return Value{DataType: TypeArray, Arr: a} }

// AsDecimal returns the underlying decimal for DECIMAL/NUMBER types, erroring
// for any other tag. Compliance checks (amount caps, thresholds) always read
// through this accessor rather than touching Num directly.
func (v Value) AsDecimal() (decimal.Decimal, error) {
	switch v.DataType {
	case TypeDecimal:
		return v.Dec, nil
	case TypeNumber:
		return decimal.NewFromFloat(v.Num), nil
	default:
		return decimal.Zero, fmt.Errorf("value of type %s is not numeric", v.DataType)
	}
}

// AsBool returns the underlying bool, erroring for any other tag.
func (v Value) AsBool() (bool, error) {
	if v.DataType != TypeBoolean {
		return false, fmt.Errorf("value of type %s is not boolean", v.DataType)
	}
	return v.Bool, nil
}

// AsString returns the underlying string, erroring for any other tag.
func (v Value) AsString() (string, error) {
	if v.DataType != TypeString {
		return "", fmt.Errorf("value of type %s is not string", v.DataType)
	}
	return v.Str, nil
}

// MarshalJSON renders the Value as a flat JSON document keyed by dataType
// and a single "value" field, for wire compactness and round-trip fidelity
// (§8 law: round-trip of parameter write→read returns the same decoded
// value with correct dataType).
func (v Value) MarshalJSON() ([]byte, error) {
	type wire struct {
		DataType DataType `json:"dataType"`
		Value    any      `json:"value"`
	}
	var raw any
	switch v.DataType {
	case TypeString:
		raw = v.Str
	case TypeNumber:
		raw = v.Num
	case TypeDecimal:
		raw = v.Dec.String()
	case TypeBoolean:
		raw = v.Bool
	case TypeObject:
		raw = v.Obj
	case TypeArray:
		raw = v.Arr
	}
	return json.Marshal(wire{DataType: v.DataType, Value: raw})
}

// UnmarshalJSON reconstructs a Value from the wire format produced by
// MarshalJSON.
func (v *Value) UnmarshalJSON(data []byte) error {
	var wire struct {
		DataType DataType        `json:"dataType"`
		Value    json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	v.DataType = wire.DataType
	switch wire.DataType {
	case TypeString:
		return json.Unmarshal(wire.Value, &v.Str)
	case TypeNumber:
		return json.Unmarshal(wire.Value, &v.Num)
	case TypeDecimal:
		var s string
		if err := json.Unmarshal(wire.Value, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		v.Dec = d
		return nil
	case TypeBoolean:
		return json.Unmarshal(wire.Value, &v.Bool)
	case TypeObject:
		return json.Unmarshal(wire.Value, &v.Obj)
	case TypeArray:
		return json.Unmarshal(wire.Value, &v.Arr)
	default:
		return shared.NewDomainError("PARAMETER_INVALID_TYPE", "unknown parameter dataType: "+string(wire.DataType))
	}
}
