// Package config provides configuration loading and structs for the sqlpilot server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "30s" parse naturally.
type Duration time.Duration

// UnmarshalYAML parses a duration string ("30s", "2m") or a bare number of seconds.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, perr := time.ParseDuration(s)
		if perr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, perr)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int64
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("invalid duration value")
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	Sandbox   SandboxConfig   `yaml:"sandbox"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// LLMConfig holds settings for the chat-completion collaborator.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	Timeout     Duration      `yaml:"timeout"`
}

// EmbeddingConfig holds embedding backend settings.
// Provider selects the backend: "mock", "onnx", or "openai".
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Dimensions int    `yaml:"dimensions"`
	ModelPath  string `yaml:"model_path"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
}

// KnowledgeConfig holds the example store settings.
type KnowledgeConfig struct {
	IndexDir          string  `yaml:"index_dir"`
	SeedDir           string  `yaml:"seed_dir"`
	OverfetchFactor   int     `yaml:"overfetch_factor"`
	ComplexityPenalty float64 `yaml:"complexity_penalty"`
}

// SandboxConfig holds the target database settings for SQL execution.
// Driver is "sqlite3" or "pgx".
type SandboxConfig struct {
	Driver       string        `yaml:"driver"`
	DSN          string        `yaml:"dsn"`
	QueryTimeout Duration      `yaml:"query_timeout"`
	MaxRows      int           `yaml:"max_rows"`
}

// WorkflowConfig holds engine settings.
type WorkflowConfig struct {
	MaxRetries    int    `yaml:"max_retries"`
	DefaultIntent string `yaml:"default_intent"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Knowledge.IndexDir = expandPath(cfg.Knowledge.IndexDir, configDir)
	if cfg.Knowledge.SeedDir != "" {
		cfg.Knowledge.SeedDir = expandPath(cfg.Knowledge.SeedDir, configDir)
	}
	if cfg.Embedding.ModelPath != "" {
		cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
