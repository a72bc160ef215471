//go:build cgo

package embeddings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"
)

// localEncodeBatchSize is the batch size passed to the ONNX session.
const localEncodeBatchSize = 256

// LocalConfig holds configuration for the local ONNX-backed model.
type LocalConfig struct {
	// Model is the embedding model to use.
	// Supported: sentence-transformers/all-MiniLM-L6-v2 (default),
	// BAAI/bge-small-en-v1.5, BAAI/bge-base-en-v1.5, etc.
	Model string

	// CacheDir is the directory holding model files.
	// Defaults to ~/.cache/embedfn/models.
	CacheDir string

	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int

	// AutoUpdate allows downloading model files when they are not cached.
	// When false, construction fails if the model is missing from CacheDir.
	AutoUpdate bool
}

// LocalModel generates embeddings using local ONNX models. It implements
// Model and Encoder.
type LocalModel struct {
	model     *fastembed.FlagEmbedding
	name      string
	dimension int
	mu        sync.RWMutex
}

// modelMapping maps friendly model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
}

// modelDimensions maps fastembed models to their embedding dimensions.
var modelDimensions = map[fastembed.EmbeddingModel]int{
	fastembed.AllMiniLML6V2: 384,
	fastembed.BGESmallENV15: 384,
	fastembed.BGESmallEN:    384,
	fastembed.BGEBaseENV15:  768,
	fastembed.BGEBaseEN:     768,
	fastembed.BGESmallZH:    512,
}

// localModelDimension returns the dimension for a known model name.
func localModelDimension(name string) (int, bool) {
	if m, ok := modelMapping[name]; ok {
		return modelDimensions[m], true
	}
	dim, ok := modelDimensions[fastembed.EmbeddingModel(name)]
	return dim, ok
}

// NewLocalModel creates a local ONNX-backed embedding model. Construction
// fails closed when the native runtime is missing (see EnsureRuntimeShim)
// or, with AutoUpdate disabled, when the model files are not cached.
func NewLocalModel(cfg LocalConfig) (*LocalModel, error) {
	model, ok := modelMapping[cfg.Model]
	if !ok {
		// Accept fastembed model names directly.
		model = fastembed.EmbeddingModel(cfg.Model)
		if _, known := modelDimensions[model]; !known {
			return nil, fmt.Errorf("%w: unsupported local model %q", ErrInvalidConfig, cfg.Model)
		}
	}

	if !RuntimeAvailable() {
		return nil, fmt.Errorf("%w: onnxruntime library not found", ErrLocalRuntimeUnavailable)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = defaultCacheDir()
	}

	if !cfg.AutoUpdate && !modelCached(cacheDir, model) {
		return nil, fmt.Errorf("%w: model %q not cached in %s and auto-update is disabled",
			ErrInvalidConfig, cfg.Model, cacheDir)
	}

	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}

	// Disable progress bar for server use.
	showProgress := false

	opts := &fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	}

	flagEmbed, err := fastembed.NewFlagEmbedding(opts)
	if err != nil {
		return nil, fmt.Errorf("initializing local embedding model: %w", err)
	}

	return &LocalModel{
		model:     flagEmbed,
		name:      cfg.Model,
		dimension: modelDimensions[model],
	}, nil
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cache", "embedfn", "models")
}

// modelCached reports whether the model files are already extracted under
// cacheDir. fastembed extracts each model into a directory named after the
// model constant.
func modelCached(cacheDir string, model fastembed.EmbeddingModel) bool {
	info, err := os.Stat(filepath.Join(cacheDir, string(model)))
	return err == nil && info.IsDir()
}

// Name returns the configured model identifier.
func (m *LocalModel) Name() string { return m.name }

// Dimension returns the embedding dimension for the current model.
func (m *LocalModel) Dimension() int { return m.dimension }

// SupportsPrefix reports that local models honor instruction prefixes.
func (m *LocalModel) SupportsPrefix() bool { return true }

// Encode implements Encoder. A non-empty prefix is prepended to each text as
// an instruction, mirroring sentence-transformers prompt handling.
func (m *LocalModel) Encode(ctx context.Context, texts []string, prefix string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	inputs := texts
	if prefix != "" {
		inputs = make([]string, len(texts))
		for i, t := range texts {
			inputs[i] = prefix + t
		}
	}

	vectors, err := m.model.Embed(inputs, localEncodeBatchSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}

	return vectors, nil
}

// Close releases the ONNX session held by the model.
func (m *LocalModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.model != nil {
		return m.model.Destroy()
	}
	return nil
}
