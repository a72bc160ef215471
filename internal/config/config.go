// Package config provides configuration loading for embedfn.
package config

import (
	"fmt"
	"time"

	"github.com/fyrsmithlabs/embedfn/pkg/embeddings"
)

// Config is the root configuration.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Embedding EmbeddingConfig `koanf:"embedding"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// EmbeddingConfig configures the embedding engine and its fallbacks.
type EmbeddingConfig struct {
	// Engine selects the backend: "" (local ONNX), "openai", or "ollama".
	Engine string `koanf:"engine"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// AutoUpdate allows the local engine to download missing model files.
	AutoUpdate bool `koanf:"auto_update"`

	// BatchSize caps texts per remote request.
	BatchSize int `koanf:"batch_size"`

	// CacheDir holds local model files.
	CacheDir string `koanf:"cache_dir"`

	// RequestTimeout bounds remote embedding requests.
	RequestTimeout Duration `koanf:"request_timeout"`

	// OpenAIBaseURL and OpenAIAPIKey configure the openai engine.
	OpenAIBaseURL string `koanf:"openai_base_url"`
	OpenAIAPIKey  Secret `koanf:"openai_api_key"`

	// OllamaBaseURL configures the ollama engine.
	OllamaBaseURL string `koanf:"ollama_base_url"`

	// FallbackAPIURL, when set, is tried before the hash embedder when the
	// configured engine cannot be constructed.
	FallbackAPIURL string `koanf:"fallback_api_url"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = embeddings.DefaultModel
	}
	if cfg.Embedding.BatchSize == 0 {
		cfg.Embedding.BatchSize = 1
	}
	if cfg.Embedding.RequestTimeout == 0 {
		cfg.Embedding.RequestTimeout = Duration(30 * time.Second)
	}
	if cfg.Embedding.OpenAIBaseURL == "" {
		cfg.Embedding.OpenAIBaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.OllamaBaseURL == "" {
		cfg.Embedding.OllamaBaseURL = "http://localhost:11434"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format must be 'json' or 'console', got %q", c.Logging.Format)
	}

	switch c.Embedding.Engine {
	case embeddings.EngineLocal, embeddings.EngineOpenAI, embeddings.EngineOllama:
	default:
		return fmt.Errorf("unknown embedding engine %q", c.Embedding.Engine)
	}

	if c.Embedding.BatchSize < 1 {
		return fmt.Errorf("embedding batch_size must be >= 1, got %d", c.Embedding.BatchSize)
	}

	return nil
}

// Endpoint returns the base URL and API key for the configured engine.
// The local engine has no endpoint.
func (e *EmbeddingConfig) Endpoint() (string, Secret) {
	switch e.Engine {
	case embeddings.EngineOpenAI:
		return e.OpenAIBaseURL, e.OpenAIAPIKey
	case embeddings.EngineOllama:
		return e.OllamaBaseURL, ""
	default:
		return "", ""
	}
}

// ToInitConfig maps the embedding section onto the initializer's config.
func (e *EmbeddingConfig) ToInitConfig() embeddings.InitConfig {
	baseURL, apiKey := e.Endpoint()
	return embeddings.InitConfig{
		Engine:         e.Engine,
		Model:          e.Model,
		AutoUpdate:     e.AutoUpdate,
		BaseURL:        baseURL,
		APIKey:         apiKey.Value(),
		BatchSize:      e.BatchSize,
		CacheDir:       e.CacheDir,
		Timeout:        e.RequestTimeout.Duration(),
		FallbackAPIURL: e.FallbackAPIURL,
	}
}
