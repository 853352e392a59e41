package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("MCP_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "openai" {
		t.Fatalf("Provider = %q, want default openai", cfg.LLM.Provider)
	}
	if cfg.Execution.MaxRetries != 5 {
		t.Fatalf("MaxRetries = %d, want default 5", cfg.Execution.MaxRetries)
	}
}

func TestLoad_YAMLThenEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := "llm:\n  provider: gemini\n  model: gemini-1.5-flash\nexecution:\n  max_retries: 3\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o644); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("MCP_MODEL", "gemini-2.0-pro")
	t.Setenv("MAX_RETRIES", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Fatalf("Provider = %q, want gemini from YAML", cfg.LLM.Provider)
	}
	if cfg.LLM.Model != "gemini-2.0-pro" {
		t.Fatalf("Model = %q, want env override to win over YAML", cfg.LLM.Model)
	}
	if cfg.Execution.MaxRetries != 7 {
		t.Fatalf("MaxRetries = %d, want env override 7", cfg.Execution.MaxRetries)
	}
}

func TestValidate_RequiresAPIKeyAndEndpoint(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for missing api key/endpoint")
	}
	cfg.LLM.APIKey = "key"
	cfg.LLM.Endpoint = "https://example.com"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_InvalidTimeoutSecondsErrors(t *testing.T) {
	t.Setenv("TIMEOUT_SECONDS", "not-a-number")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for invalid TIMEOUT_SECONDS")
	}
}
