package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %q", cfg.Port)
	}
	if cfg.MaxFileBytes != 10<<20 {
		t.Fatalf("expected 10MB file cap, got %d", cfg.MaxFileBytes)
	}
	if cfg.MaxWords != 50000 {
		t.Fatalf("expected 50000 word cap, got %d", cfg.MaxWords)
	}
	if cfg.AnalysisModel != "gpt-4o-mini" {
		t.Fatalf("unexpected default model %q", cfg.AnalysisModel)
	}
	if cfg.AnalysisTimeout != 60*time.Second {
		t.Fatalf("unexpected default timeout %v", cfg.AnalysisTimeout)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_WORDS", "1000")
	t.Setenv("ANALYSIS_TIMEOUT", "15s")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected port override, got %q", cfg.Port)
	}
	if cfg.MaxWords != 1000 {
		t.Fatalf("expected word cap override, got %d", cfg.MaxWords)
	}
	if cfg.AnalysisTimeout != 15*time.Second {
		t.Fatalf("expected timeout override, got %v", cfg.AnalysisTimeout)
	}
}

func TestInvalidEnvValuesFallBack(t *testing.T) {
	t.Setenv("MAX_WORDS", "not-a-number")
	t.Setenv("ANALYSIS_TIMEOUT", "-5s")
	t.Setenv("HEALTH_DEGRADE_RATIO", "zero")

	cfg := Load()
	if cfg.MaxWords != 50000 {
		t.Fatalf("expected fallback word cap, got %d", cfg.MaxWords)
	}
	if cfg.AnalysisTimeout != 60*time.Second {
		t.Fatalf("expected fallback timeout, got %v", cfg.AnalysisTimeout)
	}
	if cfg.HealthDegradeRatio != 0.9 {
		t.Fatalf("expected fallback ratio, got %v", cfg.HealthDegradeRatio)
	}
}

func TestConfigFileOverlay(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	content := "port: \"7070\"\nanalysisModel: gpt-4o\nanalysisTimeout: 45s\nmaxWords: 20000\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", p)

	cfg := Load()
	if cfg.Port != "7070" {
		t.Fatalf("expected file port override, got %q", cfg.Port)
	}
	if cfg.AnalysisModel != "gpt-4o" {
		t.Fatalf("expected file model override, got %q", cfg.AnalysisModel)
	}
	if cfg.AnalysisTimeout != 45*time.Second {
		t.Fatalf("expected file timeout override, got %v", cfg.AnalysisTimeout)
	}
	if cfg.MaxWords != 20000 {
		t.Fatalf("expected file word cap override, got %d", cfg.MaxWords)
	}
	// Fields the file omits keep their defaults.
	if cfg.MaxFileBytes != 10<<20 {
		t.Fatalf("expected default file cap, got %d", cfg.MaxFileBytes)
	}
}

func TestConfigFileCannotSetSecrets(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	content := "internalSharedSecret: sneaky\nanalysisApiKey: sneaky\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("CONFIG_FILE", p)

	cfg := Load()
	if cfg.InternalSharedSecret != "" || cfg.AnalysisAPIKey != "" {
		t.Fatalf("secrets must not be settable from the config file")
	}
}

func TestValidateRequiresStrongSecret(t *testing.T) {
	cfg := Config{InternalSharedSecret: "short"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation failure for short secret")
	}

	cfg.InternalSharedSecret = strings.Repeat("a", 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected 32-char secret to validate, got %v", err)
	}
}
