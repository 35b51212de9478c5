package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "http://localhost:8000/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "qwen-agent"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = Duration(120 * time.Second)
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Knowledge.IndexDir == "" {
		cfg.Knowledge.IndexDir = "/usr/local/var/sqlpilot/data/examples"
	}
	if cfg.Knowledge.OverfetchFactor == 0 {
		cfg.Knowledge.OverfetchFactor = 3
	}
	if cfg.Knowledge.ComplexityPenalty == 0 {
		cfg.Knowledge.ComplexityPenalty = 0.1
	}
	if cfg.Sandbox.Driver == "" {
		cfg.Sandbox.Driver = "sqlite3"
	}
	if cfg.Sandbox.QueryTimeout == 0 {
		cfg.Sandbox.QueryTimeout = Duration(30 * time.Second)
	}
	if cfg.Sandbox.MaxRows == 0 {
		cfg.Sandbox.MaxRows = 100
	}
	if cfg.Workflow.MaxRetries == 0 {
		cfg.Workflow.MaxRetries = 3
	}
	if cfg.Workflow.DefaultIntent == "" {
		cfg.Workflow.DefaultIntent = "chat"
	}
}
