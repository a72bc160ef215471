package embeddings

import (
	"context"
	"errors"
)

// Supported embedding engines. The empty string selects the local
// ONNX-backed engine, matching the host application's configuration
// convention.
const (
	EngineLocal  = ""
	EngineOpenAI = "openai"
	EngineOllama = "ollama"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrLocalBackendUnavailable indicates the local embedding backend was
	// not compiled into the binary (requires CGO).
	ErrLocalBackendUnavailable = errors.New("local embedding backend not available")

	// ErrLocalRuntimeUnavailable indicates the native ONNX runtime library
	// could not be located, so local models cannot be constructed.
	ErrLocalRuntimeUnavailable = errors.New("onnx runtime unavailable")

	// ErrExternalAPIUnavailable indicates a remote embedding endpoint did
	// not return a usable result. Callers treat it as "no result" and move
	// on in the fallback chain.
	ErrExternalAPIUnavailable = errors.New("external embedding API unavailable")

	// ErrAllFallbacksExhausted indicates no embedding function could be
	// constructed at all. The hash embedder has no dependencies, so this
	// signals a broken environment or misbehaving custom collaborators.
	ErrAllFallbacksExhausted = errors.New("all embedding fallbacks exhausted")
)

// Model is the capability surface every embedding model variant implements.
type Model interface {
	// Name returns the model identifier.
	Name() string
	// Dimension returns the fixed embedding dimension.
	Dimension() int
}

// Encoder is the direct-encode capability. Models that can embed texts
// without external wiring implement it; the initializer uses it for direct
// wrapping when the function factory fails. A non-empty prefix is an
// instruction hint that models without prompt support silently ignore.
type Encoder interface {
	Encode(ctx context.Context, texts []string, prefix string) ([][]float32, error)
}

// prefixSupporter marks models that honor the instruction prefix. Checked by
// the function factory so prefixes are only forwarded where they matter.
type prefixSupporter interface {
	SupportsPrefix() bool
}

func modelSupportsPrefix(m Model) bool {
	if ps, ok := m.(prefixSupporter); ok {
		return ps.SupportsPrefix()
	}
	return false
}

// UserContext identifies the end user on whose behalf embeddings are
// generated. Remote engines forward it as request headers so upstream
// providers can attribute usage; local models ignore it.
type UserContext struct {
	ID    string
	Name  string
	Email string
	Role  string
}
