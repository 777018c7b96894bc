package model

import (
	"context"
	"fmt"
	"strings"
)

// Info contains metadata about a generator implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", etc.
}

// Generator is the minimal interface required to draft replies and
// structured objects. Implementations must treat provider-side schema
// validation failures as recoverable: GenerateStructured falls back to
// best-effort JSON parsing and finally to an empty object rather than
// erroring on malformed provider output. Transport errors are returned.
type Generator interface {
	// GenerateText produces a free-form completion for the prompt.
	GenerateText(ctx context.Context, prompt string) (string, error)

	// GenerateStructured produces an object constrained (best effort) by the
	// given minimal JSON schema.
	GenerateStructured(ctx context.Context, prompt string, schema map[string]any) (map[string]any, error)

	// Info returns information about the generator implementation.
	Info() Info
}

// MockGenerator is a lightweight in-memory Generator useful for tests and
// examples. Responses are matched by prompt substring in registration order.
type MockGenerator struct {
	info       Info
	texts      []mockRule[string]
	structured []mockRule[map[string]any]
	err        error
}

type mockRule[T any] struct {
	substr   string
	response T
}

// NewMockGenerator constructs an empty MockGenerator.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{info: Info{Name: "mock", Provider: "mock"}}
}

// AddText registers a canned free-form completion returned when the prompt
// contains substr.
func (m *MockGenerator) AddText(substr, response string) *MockGenerator {
	m.texts = append(m.texts, mockRule[string]{substr, response})
	return m
}

// AddStructured registers a canned structured object returned when the
// prompt contains substr.
func (m *MockGenerator) AddStructured(substr string, response map[string]any) *MockGenerator {
	m.structured = append(m.structured, mockRule[map[string]any]{substr, response})
	return m
}

// FailWith makes every subsequent call return err, simulating provider
// unavailability.
func (m *MockGenerator) FailWith(err error) *MockGenerator {
	m.err = err
	return m
}

// GenerateText implements Generator.
func (m *MockGenerator) GenerateText(_ context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	for _, rule := range m.texts {
		if strings.Contains(prompt, rule.substr) {
			return rule.response, nil
		}
	}
	return fmt.Sprintf("Mock reply to: %s", firstLine(prompt)), nil
}

// GenerateStructured implements Generator. Unmatched prompts yield an empty
// object, mirroring the coercion fallback of real adapters.
func (m *MockGenerator) GenerateStructured(_ context.Context, prompt string, _ map[string]any) (map[string]any, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, rule := range m.structured {
		if strings.Contains(prompt, rule.substr) {
			return rule.response, nil
		}
	}
	return map[string]any{}, nil
}

// Info implements Generator.
func (m *MockGenerator) Info() Info { return m.info }

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
