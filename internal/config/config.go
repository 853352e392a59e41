// Package config loads pipeline configuration from an optional YAML
// file, then overlays environment variables on top — same precedence
// order codeNERD's own config package uses for its provider API keys.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"agentpipe/internal/logging"
)

// Config holds every setting the pipeline needs to run one workflow.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Execution ExecutionConfig `yaml:"execution"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LLMConfig selects and authenticates against one provider.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" | "gemini"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	Timeout  string `yaml:"timeout"`
}

// ExecutionConfig governs the sandbox and the Orchestrator's retry/rate behavior.
type ExecutionConfig struct {
	WorkspaceDir        string `yaml:"workspace_dir"`
	UsageLogFile        string `yaml:"usage_log_file"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
	MaxRetries          int    `yaml:"max_retries"`
	EnableRateLimiting  bool   `yaml:"enable_rate_limiting"`
	MaxDebugAttempts    int    `yaml:"max_debug_attempts"`
}

// LoggingConfig controls the internal category logger.
type LoggingConfig struct {
	DebugMode bool `yaml:"debug_mode"`
}

// DefaultConfig returns the pipeline's baseline configuration before
// any file or environment overlay is applied.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
			Timeout:  "300s",
		},
		Execution: ExecutionConfig{
			WorkspaceDir:       "./workspace",
			UsageLogFile:       "usage.json",
			TimeoutSeconds:     60,
			MaxRetries:         5,
			EnableRateLimiting: true,
			MaxDebugAttempts:   5,
		},
	}
}

// Load reads path (if it exists) as YAML into a DefaultConfig, then
// overlays environment variables. A missing file is not an error — the
// pipeline can run on environment variables alone.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if uerr := yaml.Unmarshal(data, cfg); uerr != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, uerr)
			}
		case os.IsNotExist(err):
			logging.Get(logging.CategoryOrchestrator).Debug("config file %s not found, using defaults + env", path)
		default:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides layers this pipeline's environment variables on top
// of whatever Load already populated from YAML or defaults.
func (c *Config) applyEnvOverrides() error {
	if key := os.Getenv("MCP_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if endpoint := os.Getenv("MCP_ENDPOINT"); endpoint != "" {
		c.LLM.Endpoint = endpoint
	}
	if model := os.Getenv("MCP_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if dir := os.Getenv("WORKSPACE_DIR"); dir != "" {
		c.Execution.WorkspaceDir = dir
	}
	if file := os.Getenv("USAGE_LOG_FILE"); file != "" {
		c.Execution.UsageLogFile = file
	}
	if raw := os.Getenv("TIMEOUT_SECONDS"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: TIMEOUT_SECONDS=%q: %w", raw, err)
		}
		c.Execution.TimeoutSeconds = n
	}
	if raw := os.Getenv("MAX_RETRIES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: MAX_RETRIES=%q: %w", raw, err)
		}
		c.Execution.MaxRetries = n
	}
	if raw := os.Getenv("ENABLE_RATE_LIMITING"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("config: ENABLE_RATE_LIMITING=%q: %w", raw, err)
		}
		c.Execution.EnableRateLimiting = enabled
	}
	return nil
}

// Validate checks that the configuration has what it needs to reach an
// LLM provider ("MCP_API_KEY/MCP_ENDPOINT required").
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("config: MCP_API_KEY (or llm.api_key) is required")
	}
	if c.LLM.Endpoint == "" {
		return fmt.Errorf("config: MCP_ENDPOINT (or llm.endpoint) is required")
	}
	return nil
}

// Timeout returns Execution.TimeoutSeconds as a Duration.
func (c *Config) Timeout() time.Duration {
	if c.Execution.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Execution.TimeoutSeconds) * time.Second
}
