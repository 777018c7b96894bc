package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoerceStructuredStrict(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"mode": map[string]any{"type": "string", "enum": []string{"advisor", "calculator"}},
		},
		"required": []string{"mode"},
	}
	obj := CoerceStructured(`{"mode":"advisor","summary":"ok"}`, schema)
	assert.Equal(t, "advisor", obj["mode"])
	assert.Equal(t, "ok", obj["summary"])
}

func TestCoerceStructuredFencedOutput(t *testing.T) {
	raw := "Here is the plan:\n```json\n{\"description\": \"ROI\", \"variables\": {\"budget\": 100000}}\n```\nDone."
	obj := CoerceStructured(raw, nil)
	assert.Equal(t, "ROI", obj["description"])
	vars := GetObject(obj, "variables")
	assert.Equal(t, float64(100000), vars["budget"])
}

func TestCoerceStructuredEmbeddedObject(t *testing.T) {
	raw := `The answer is {"mode": "calculator", "note": "a {nested} brace in a string"} as requested`
	obj := CoerceStructured(raw, nil)
	assert.Equal(t, "calculator", obj["mode"])
}

func TestCoerceStructuredGarbage(t *testing.T) {
	obj := CoerceStructured("no json here at all", nil)
	assert.NotNil(t, obj)
	assert.Empty(t, obj)
}

func TestValidateObject(t *testing.T) {
	schema := map[string]any{
		"properties": map[string]any{
			"mode":  map[string]any{"type": "string", "enum": []string{"advisor", "calculator"}},
			"count": map[string]any{"type": "integer"},
		},
		"required": []string{"mode"},
	}
	assert.NoError(t, ValidateObject(map[string]any{"mode": "advisor", "count": float64(3)}, schema))
	assert.Error(t, ValidateObject(map[string]any{"count": float64(3)}, schema), "missing required")
	assert.Error(t, ValidateObject(map[string]any{"mode": "other"}, schema), "enum violation")
	assert.Error(t, ValidateObject(map[string]any{"mode": "advisor", "count": 2.5}, schema), "non-integer")
}

func TestGetHelpers(t *testing.T) {
	obj := map[string]any{
		"s":    "text",
		"list": []any{"a", 1, "b"},
		"m":    map[string]any{"k": "v"},
	}
	assert.Equal(t, "text", GetString(obj, "s", "d"))
	assert.Equal(t, "d", GetString(obj, "missing", "d"))
	assert.Equal(t, []string{"a", "b"}, GetStringSlice(obj, "list"))
	assert.Empty(t, GetStringSlice(obj, "missing"))
	assert.Equal(t, "v", GetObject(obj, "m")["k"])
	assert.Empty(t, GetObject(obj, "missing"))
}
