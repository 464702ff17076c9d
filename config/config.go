// Package config loads taskloom's YAML configuration and applies defaults so
// a minimal file (or none at all) yields a working setup.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	// Provider selects the generation backend: "openai" or "anthropic".
	Provider string `yaml:"provider"`
	// Model is the provider-specific model identifier; empty uses the
	// adapter's default.
	Model string `yaml:"model"`
	// SystemPrompt overrides the default assistant instruction.
	SystemPrompt string `yaml:"system_prompt"`
	// Strategy selects the turn control shape: "router" or "react".
	Strategy string `yaml:"strategy"`
	// MaxSteps caps loop iterations per turn.
	MaxSteps int `yaml:"max_steps"`
	// HistoryWindow bounds the decision/planning context windows.
	HistoryWindow int `yaml:"history_window"`

	Memory   MemoryConfig   `yaml:"memory"`
	Executor ExecutorConfig `yaml:"executor"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// MemoryConfig selects and parameterizes the history backend.
type MemoryConfig struct {
	// Backend is "memory", "file" or "redis".
	Backend string `yaml:"backend"`
	// Path locates the JSON store for the file backend.
	Path string `yaml:"path"`
	// RedisAddr is the host:port for the redis backend.
	RedisAddr string `yaml:"redis_addr"`
	// RedisDB selects the redis database index.
	RedisDB int `yaml:"redis_db"`
	// SemanticRecall enables keyword-based long-term recall.
	SemanticRecall bool `yaml:"semantic_recall"`
}

// ExecutorConfig bounds plan execution.
type ExecutorConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
	MaxIterations  int `yaml:"max_iterations"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`
	// Format is "text" or "json".
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Provider:      "openai",
		Strategy:      "router",
		MaxSteps:      20,
		HistoryWindow: 3,
		Memory: MemoryConfig{
			Backend: "memory",
			Path:    "sessions.json",
		},
		Executor: ExecutorConfig{
			MaxConcurrency: 4,
			MaxIterations:  50,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error; a malformed or invalid one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values no component accepts.
func (c Config) Validate() error {
	switch c.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	switch c.Strategy {
	case "router", "react":
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	switch c.Memory.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("unknown memory backend %q", c.Memory.Backend)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be >= 0, got %d", c.MaxSteps)
	}
	if c.Executor.MaxConcurrency < 1 {
		return fmt.Errorf("executor max_concurrency must be >= 1, got %d", c.Executor.MaxConcurrency)
	}
	if c.Executor.MaxIterations < 1 {
		return fmt.Errorf("executor max_iterations must be >= 1, got %d", c.Executor.MaxIterations)
	}
	return nil
}
