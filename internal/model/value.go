package model

import (
	"fmt"
	"strconv"

	"github.com/Tachiguishi/iec61850-simulator/internal/iecstack"
)

// coerceBool implements spec.md §4.7's boolean truthiness rule: accept
// booleans, non-zero integers, and the case-insensitive strings
// true|1|yes|on.
func coerceBool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		return isTruthyString(v)
	default:
		if i, ok := asInt64(raw); ok {
			return i != 0
		}
		return false
	}
}

func asInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case uint64:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case float64:
		return int64(v), true
	case float32:
		return int64(v), true
	case string:
		if i, ok := parseAutoBaseInt64(v); ok {
			return i, true
		}
		return 0, false
	default:
		return 0, false
	}
}

func asFloat64(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		if i, ok := asInt64(raw); ok {
			return float64(i), true
		}
		return 0, false
	}
}

// coerceEnum implements spec.md §4.7's ENUMERATED coercion: for a
// string value, first try the five-name ctlModel vocabulary, then fall
// back to a decimal parse; any other kind widens through asInt64.
func coerceEnum(raw any) (int64, bool) {
	if s, ok := raw.(string); ok {
		if cm, ok := iecstack.ParseControlModel(s); ok {
			return int64(cm), true
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		return 0, false
	}
	return asInt64(raw)
}

// CoerceValue is the exported entry point serveractions.set_data_value
// uses to turn a decoded wire value into an MmsValue matching a resolved
// attribute's declared type. (clientactions.write does not use it: it
// picks the MmsValue type from the wire value's own Go type.)
func CoerceValue(dt iecstack.DataType, raw any) (iecstack.MmsValue, bool) {
	return coerceValue(dt, raw)
}

// coerceValue builds an MmsValue matching dt from raw, per spec.md
// §4.7's "value coercion by declared type" rules. ok is false when raw
// cannot be coerced to dt at all (the caller then attaches no value,
// matching "a nil value yields no attached value").
func coerceValue(dt iecstack.DataType, raw any) (iecstack.MmsValue, bool) {
	if raw == nil {
		return iecstack.MmsValue{}, false
	}

	switch dt {
	case iecstack.TypeBoolean:
		return iecstack.MmsValue{Type: dt, Value: coerceBool(raw)}, true

	case iecstack.TypeInt8, iecstack.TypeInt16, iecstack.TypeInt32, iecstack.TypeInt64,
		iecstack.TypeUint8, iecstack.TypeUint16, iecstack.TypeUint24, iecstack.TypeUint32:
		i, ok := asInt64(raw)
		if !ok {
			return iecstack.MmsValue{}, false
		}
		return iecstack.MmsValue{Type: dt, Value: i}, true

	case iecstack.TypeFloat32, iecstack.TypeFloat64:
		f, ok := asFloat64(raw)
		if !ok {
			return iecstack.MmsValue{}, false
		}
		return iecstack.MmsValue{Type: dt, Value: f}, true

	case iecstack.TypeEnum:
		i, ok := coerceEnum(raw)
		if !ok {
			return iecstack.MmsValue{}, false
		}
		return iecstack.MmsValue{Type: dt, Value: i}, true

	default:
		// Strings (visible/unicode/octet), quality, timestamp, check: take
		// the value as-is if it's already a string, else render it plainly
		// rather than drop it — an attribute declared as a string type that
		// receives a non-string MessagePack value is a model-authoring
		// mistake we still want to store something useful for.
		if s, ok := raw.(string); ok {
			return iecstack.MmsValue{Type: dt, Value: s}, true
		}
		return iecstack.MmsValue{Type: dt, Value: fmt.Sprintf("%v", raw)}, true
	}
}
