package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsString(t *testing.T) {
	assert.Equal(t, "hi", AsString("hi", "fallback"))
	assert.Equal(t, "fallback", AsString(42, "fallback"))
	assert.Equal(t, "fallback", AsString(nil, "fallback"))
}

func TestAsInt64(t *testing.T) {
	assert.Equal(t, int64(5), AsInt64(int64(5), -1))
	assert.Equal(t, int64(5), AsInt64(int(5), -1))
	assert.Equal(t, int64(-5), AsInt64(int8(-5), 0))
	assert.Equal(t, int64(-1), AsInt64("5", -1))
}

func TestAsBool(t *testing.T) {
	assert.True(t, AsBool(true, false))
	assert.False(t, AsBool("true", false))
}

func TestAsDouble(t *testing.T) {
	assert.Equal(t, 1.5, AsDouble(1.5, 0))
	assert.Equal(t, float64(3), AsDouble(int64(3), 0))
	assert.Equal(t, 0.0, AsDouble("nope", 0))
}

func TestFindKey(t *testing.T) {
	v, ok := FindKey(map[string]any{"a": 1}, "a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = FindKey(map[string]any{"a": 1}, "b")
	assert.False(t, ok)

	_, ok = FindKey("not a map", "a")
	assert.False(t, ok)
}

func TestAsStringSlice(t *testing.T) {
	out, ok := AsStringSlice([]any{"a", 1, "b"})
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, out)

	_, ok = AsStringSlice("nope")
	assert.False(t, ok)
}
