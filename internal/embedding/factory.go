package embedding

import (
	"fmt"

	"github.com/sqlpilot/sqlpilot/internal/config"
)

// New creates the embedder selected by cfg.Provider: "mock", "onnx", or "openai".
// An ONNX construction failure is returned to the caller, which may fall back
// to the mock backend (the index semantics do not depend on the backend).
func New(cfg *config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "mock", "":
		return NewMockEmbedder(cfg.Dimensions), nil
	case "onnx":
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens, cfg.CacheSize)
	case "openai":
		return NewOpenAIEmbedder(cfg.BaseURL, cfg.APIKey, cfg.Model, cfg.Dimensions, cfg.CacheSize)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, onnx, openai)", cfg.Provider)
	}
}
