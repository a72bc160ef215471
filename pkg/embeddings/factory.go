package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ModelConstructor builds an embedding model for the configured engine.
// Implementations must return an error rather than a nil model; the
// initializer treats any error as recoverable and falls back.
type ModelConstructor interface {
	ConstructModel(ctx context.Context, engine, model string, autoUpdate bool) (Model, error)
}

// FunctionFactory wraps a model into the uniform calling convention,
// handling API-vs-local conventions, batching, and credential selection.
type FunctionFactory interface {
	WrapModel(ctx context.Context, engine, modelName string, m Model, baseURL, apiKey string, batchSize int) (*Function, error)
}

// DefaultConstructor constructs models using the built-in backends: the
// local ONNX backend for EngineLocal and probed remote clients for the API
// engines.
type DefaultConstructor struct {
	CacheDir  string
	BaseURL   string
	APIKey    string
	BatchSize int
	Timeout   time.Duration
	Logger    *zap.Logger
}

// ConstructModel implements ModelConstructor.
func (c *DefaultConstructor) ConstructModel(ctx context.Context, engine, model string, autoUpdate bool) (Model, error) {
	switch engine {
	case EngineLocal:
		return NewLocalModel(LocalConfig{
			Model:      model,
			CacheDir:   c.CacheDir,
			AutoUpdate: autoUpdate,
		})
	case EngineOpenAI, EngineOllama:
		return newRemoteModel(ctx, RemoteConfig{
			Engine:    engine,
			Model:     model,
			BaseURL:   c.BaseURL,
			APIKey:    c.APIKey,
			BatchSize: c.BatchSize,
			Timeout:   c.Timeout,
		}, c.Logger)
	default:
		return nil, fmt.Errorf("%w: unknown embedding engine %q", ErrInvalidConfig, engine)
	}
}

// DefaultFactory wraps models into Functions.
type DefaultFactory struct {
	Timeout time.Duration
	Logger  *zap.Logger
}

// WrapModel implements FunctionFactory.
//
// Remote models keep the client and dimension probed at construction.
// Fallback models running under an API engine keep their own encoding: the
// fallback exists precisely because the API path is not usable. An opaque
// non-Encoder model under an API engine gets a fresh client built from the
// provided base URL and credentials.
func (f *DefaultFactory) WrapModel(ctx context.Context, engine, modelName string, m Model, baseURL, apiKey string, batchSize int) (*Function, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil model", ErrInvalidConfig)
	}

	if rm, ok := m.(*remoteModel); ok {
		return newRemoteFunction(engine, modelName, rm.dimension, rm.client), nil
	}

	switch engine {
	case EngineLocal:
		enc, ok := m.(Encoder)
		if !ok {
			return nil, fmt.Errorf("%w: model %q exposes no direct encoding", ErrInvalidConfig, m.Name())
		}
		return newEncoderFunction(engine, m, enc), nil

	case EngineOpenAI, EngineOllama:
		if enc, ok := m.(Encoder); ok {
			return newEncoderFunction(engine, m, enc), nil
		}

		client, err := NewRemoteClient(RemoteConfig{
			Engine:    engine,
			Model:     modelName,
			BaseURL:   baseURL,
			APIKey:    apiKey,
			BatchSize: batchSize,
			Timeout:   f.Timeout,
		}, f.Logger)
		if err != nil {
			return nil, err
		}

		dimension := m.Dimension()
		if dimension == 0 {
			dimension = detectDimension(modelName)
		}
		return newRemoteFunction(engine, modelName, dimension, client), nil

	default:
		return nil, fmt.Errorf("%w: unknown embedding engine %q", ErrInvalidConfig, engine)
	}
}

// detectDimension returns the embedding dimension for a model name, falling
// back to 384 when the model is unknown.
func detectDimension(model string) int {
	if dim, ok := localModelDimension(model); ok {
		return dim
	}
	// Common model dimension patterns.
	switch {
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	case strings.Contains(model, "small"), strings.Contains(model, "mini"):
		return 384
	default:
		return 384
	}
}
