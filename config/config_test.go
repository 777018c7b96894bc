package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "openai" {
		t.Fatalf("unexpected default provider: %q", cfg.Provider)
	}
	if cfg.PlanTTL.Std() != 30*time.Minute {
		t.Fatalf("unexpected default plan ttl: %s", cfg.PlanTTL.Std())
	}
}

func TestLoadFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	data := "provider: mock\nplan_ttl: 5m\nhttp_addr: \":9000\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "mock" {
		t.Fatalf("file overlay not applied: %q", cfg.Provider)
	}
	if cfg.PlanTTL.Std() != 5*time.Minute {
		t.Fatalf("file overlay not applied to plan ttl: %s", cfg.PlanTTL.Std())
	}
	if cfg.HTTPAddr != ":9000" {
		t.Fatalf("file overlay not applied to http addr: %q", cfg.HTTPAddr)
	}
	// untouched keys keep defaults
	if cfg.Model != "gpt-4o-mini" {
		t.Fatalf("default model lost: %q", cfg.Model)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pilot.yaml")
	if err := os.WriteFile(path, []byte("provider: mock\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PILOT_PROVIDER", "anthropic")
	t.Setenv("PILOT_SANDBOX_TIMEOUT", "3s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Provider != "anthropic" {
		t.Fatalf("env override lost: %q", cfg.Provider)
	}
	if cfg.SandboxTimeout.Std() != 3*time.Second {
		t.Fatalf("env override lost for sandbox timeout: %s", cfg.SandboxTimeout.Std())
	}
}

func TestLoadRejectsUnknownProvider(t *testing.T) {
	t.Setenv("PILOT_PROVIDER", "carrier-pigeon")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
