package util

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// CoerceStructured turns raw model output into a structured object through a
// pipeline of parse attempts, never failing:
//
//  1. strict: whole-output JSON decode plus schema validation
//  2. relaxed: strict decode without schema validation
//  3. extraction: first balanced JSON object found in the text, tolerating
//     code fences and prose around it
//  4. empty object
//
// Each stage is a pure function of the raw text; the first stage to produce
// an object wins.
func CoerceStructured(raw string, schema map[string]any) map[string]any {
	trimmed := strings.TrimSpace(raw)

	if obj := decodeObject(trimmed); obj != nil {
		if schema == nil || ValidateObject(obj, schema) == nil {
			return obj
		}
		// schema mismatch but still an object: relaxed stage accepts it
		return obj
	}

	if candidate := extractObjectText(trimmed); candidate != "" {
		if obj := decodeObject(candidate); obj != nil {
			return obj
		}
	}

	return map[string]any{}
}

// decodeObject decodes src when it is a valid JSON object, nil otherwise.
func decodeObject(src string) map[string]any {
	if !gjson.Valid(src) {
		return nil
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(src), &obj); err != nil {
		return nil
	}
	return obj
}

// extractObjectText finds the first balanced top-level JSON object embedded
// in free text, stripping markdown code fences first.
func extractObjectText(src string) string {
	src = stripFences(src)
	start := strings.IndexByte(src, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(src); i++ {
		c := src[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return src[start : i+1]
			}
		}
	}
	return ""
}

// stripFences removes a leading/trailing markdown code fence if present.
func stripFences(src string) string {
	src = strings.TrimSpace(src)
	if !strings.HasPrefix(src, "```") {
		return src
	}
	src = strings.TrimPrefix(src, "```")
	if idx := strings.IndexByte(src, '\n'); idx >= 0 {
		src = src[idx+1:] // drop the language tag line
	}
	if idx := strings.LastIndex(src, "```"); idx >= 0 {
		src = src[:idx]
	}
	return strings.TrimSpace(src)
}

// GetString returns obj[key] as a string, or fallback when absent/mistyped.
func GetString(obj map[string]any, key, fallback string) string {
	if s, ok := obj[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

// GetStringSlice returns obj[key] as a string slice, dropping non-string
// elements. Absent or mistyped values yield an empty slice.
func GetStringSlice(obj map[string]any, key string) []string {
	items, ok := obj[key].([]any)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// GetObject returns obj[key] as a map, or an empty map when absent/mistyped.
func GetObject(obj map[string]any, key string) map[string]any {
	if m, ok := obj[key].(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
