package props

import (
	"encoding/json"
	"math"
	"regexp"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// Detect classifies a scalar payload value and returns the column value
// that goes with it. It is total over the JSON value space: anything it
// does not recognise falls back to a JSON-encoded blob.
func Detect(value any) (ValueType, any) {
	switch v := value.(type) {
	case nil:
		return TypeString, nil
	case bool:
		return TypeBoolean, v
	case string:
		if uuidPattern.MatchString(v) {
			return TypeReference, v
		}
		return TypeString, v
	case int:
		return TypeInteger, int64(v)
	case int64:
		return TypeInteger, v
	case float64:
		if isWhole(v) {
			return TypeInteger, int64(v)
		}
		return TypeNumber, v
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return TypeInteger, i
		}
		f, err := v.Float64()
		if err != nil {
			return TypeString, v.String()
		}
		return TypeNumber, f
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return TypeString, nil
		}
		return TypeJSON, string(encoded)
	}
}

func isWhole(f float64) bool {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return false
	}
	return f == math.Trunc(f) && math.Abs(f) <= 1<<53
}

func setValue(attr *Attribute, valueType ValueType, value any) {
	attr.Type = valueType
	if value == nil {
		return
	}
	switch valueType {
	case TypeString:
		s := value.(string)
		attr.ValueString = &s
	case TypeReference:
		s := value.(string)
		attr.ValueReference = &s
	case TypeBoolean:
		b := value.(bool)
		attr.ValueBoolean = &b
	case TypeInteger:
		i := value.(int64)
		attr.ValueInteger = &i
	case TypeNumber:
		f := value.(float64)
		attr.ValueNumber = &f
	case TypeJSON:
		s := value.(string)
		attr.ValueJSON = &s
	}
}
