//go:build !cgo

package embeddings

import (
	"context"
	"fmt"
)

// LocalConfig holds configuration for the local ONNX-backed model.
type LocalConfig struct {
	Model      string
	CacheDir   string
	MaxLength  int
	AutoUpdate bool
}

// LocalModel is a stub for non-CGO builds. The local engine reports
// ErrLocalBackendUnavailable so the initializer falls back immediately.
type LocalModel struct{}

// NewLocalModel returns an error when CGO is not available.
func NewLocalModel(_ LocalConfig) (*LocalModel, error) {
	return nil, fmt.Errorf("%w: binary built without CGO, use a remote engine instead", ErrLocalBackendUnavailable)
}

// Name returns an empty identifier for the stub.
func (m *LocalModel) Name() string { return "" }

// Dimension returns 0 when CGO is not available.
func (m *LocalModel) Dimension() int { return 0 }

// Encode returns an error when CGO is not available.
func (m *LocalModel) Encode(_ context.Context, _ []string, _ string) ([][]float32, error) {
	return nil, ErrLocalBackendUnavailable
}

// Close is a no-op when CGO is not available.
func (m *LocalModel) Close() error { return nil }

// localModelDimension returns dimensions for known models. This is a static
// fallback when CGO is not available.
func localModelDimension(name string) (int, bool) {
	dims := map[string]int{
		"sentence-transformers/all-MiniLM-L6-v2": 384,
		"BAAI/bge-small-en-v1.5":                 384,
		"BAAI/bge-small-en":                      384,
		"BAAI/bge-base-en-v1.5":                  768,
		"BAAI/bge-base-en":                       768,
		"BAAI/bge-small-zh-v1.5":                 512,
		"fast-all-MiniLM-L6-v2":                  384,
		"fast-bge-small-en-v1.5":                 384,
		"fast-bge-base-en-v1.5":                  768,
	}
	dim, ok := dims[name]
	return dim, ok
}
