package model

import (
	"context"
	"errors"
	"testing"
)

func TestMockGeneratorTextMatching(t *testing.T) {
	m := NewMockGenerator().AddText("ROI", "return on investment explained")
	out, err := m.GenerateText(context.Background(), "Tell me about ROI please")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "return on investment explained" {
		t.Fatalf("unexpected response: %q", out)
	}
	fallback, _ := m.GenerateText(context.Background(), "unrelated\nsecond line")
	if fallback != "Mock reply to: unrelated" {
		t.Fatalf("unexpected fallback: %q", fallback)
	}
}

func TestMockGeneratorStructured(t *testing.T) {
	m := NewMockGenerator().AddStructured("classify", map[string]any{"mode": "calculator"})
	obj, err := m.GenerateStructured(context.Background(), "please classify this", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj["mode"] != "calculator" {
		t.Fatalf("unexpected object: %#v", obj)
	}
	empty, _ := m.GenerateStructured(context.Background(), "no match", nil)
	if len(empty) != 0 {
		t.Fatalf("expected empty object, got %#v", empty)
	}
}

func TestMockGeneratorFailure(t *testing.T) {
	wantErr := errors.New("provider down")
	m := NewMockGenerator().FailWith(wantErr)
	if _, err := m.GenerateText(context.Background(), "x"); !errors.Is(err, wantErr) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if _, err := m.GenerateStructured(context.Background(), "x", nil); !errors.Is(err, wantErr) {
		t.Fatalf("expected injected error, got %v", err)
	}
}
