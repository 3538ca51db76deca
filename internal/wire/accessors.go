package wire

// Payload field accessors. These are the contract every handler relies on
// (spec.md §4.1): each coerces a decoded MessagePack value to the
// requested Go type, falling back to a caller-supplied default when the
// value is absent or of the wrong type. They deliberately do not use
// spf13/cast's generic ToXxx functions (which coerce far more liberally,
// e.g. turning any non-empty string into true) because spec.md pins down
// an exact, narrower coercion contract per type; cast is used only inside
// ToString-style rendering (internal/logging) where liberal coercion is
// exactly what's wanted for log messages.

// FindKey returns the value of key in obj and whether it was present as
// a map entry. A non-map obj (or a nil obj) always returns ok=false.
func FindKey(obj any, key string) (any, bool) {
	m, ok := obj.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// AsString coerces obj to a string, returning fallback unless obj is
// already a Go string (msgpack decodes MessagePack strings as Go string).
func AsString(obj any, fallback string) string {
	if s, ok := obj.(string); ok {
		return s
	}
	return fallback
}

// AsInt64 coerces obj to an int64, accepting any of the integer kinds
// msgpack may decode a MessagePack integer into.
func AsInt64(obj any, fallback int64) int64 {
	switch v := obj.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case uint64:
		return int64(v)
	case uint:
		return int64(v)
	case uint32:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	default:
		return fallback
	}
}

// AsBool coerces obj to a bool, returning fallback unless obj is a Go
// bool.
func AsBool(obj any, fallback bool) bool {
	if b, ok := obj.(bool); ok {
		return b
	}
	return fallback
}

// AsDouble coerces obj to a float64, accepting floats and widening any
// decoded integer kind, per spec.md §4.1.
func AsDouble(obj any, fallback float64) float64 {
	switch v := obj.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	default:
		if i, ok := asInt64Strict(obj); ok {
			return float64(i)
		}
		return fallback
	}
}

func asInt64Strict(obj any) (int64, bool) {
	switch v := obj.(type) {
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
	default:
		return 0, false
	}
}

// AsMap coerces obj to a MessagePack map. Used by handlers that need a
// nested map (e.g. load_model's "model" and "config" keys).
func AsMap(obj any) (map[string]any, bool) {
	m, ok := obj.(map[string]any)
	return m, ok
}

// AsStringSlice coerces obj to a []string, skipping any element that is
// not a string. A non-slice obj returns nil, false.
func AsStringSlice(obj any) ([]string, bool) {
	arr, ok := obj.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, true
}
