package embeddings

import (
	"context"
	"fmt"
	"time"
)

// Function is the uniform embedding calling convention produced by the
// initializer. All configuration is captured as immutable fields at
// construction time; a Function is safe for concurrent use and always
// returns vectors of the same dimension for its lifetime.
type Function struct {
	engine         string
	modelName      string
	dimension      int
	encoder        Encoder       // direct path: local, hash, and fallback-API models
	remote         *RemoteClient // API path
	supportsPrefix bool
	metrics        *Metrics
}

// newEncoderFunction wraps a model's direct encode capability.
func newEncoderFunction(engine string, m Model, enc Encoder) *Function {
	return &Function{
		engine:         engine,
		modelName:      m.Name(),
		dimension:      m.Dimension(),
		encoder:        enc,
		supportsPrefix: modelSupportsPrefix(m),
	}
}

// newRemoteFunction wraps a remote client. Remote engines have no
// instruction parameter, so the prefix is never forwarded.
func newRemoteFunction(engine, modelName string, dimension int, client *RemoteClient) *Function {
	return &Function{
		engine:    engine,
		modelName: modelName,
		dimension: dimension,
		remote:    client,
	}
}

// Embed returns one vector per input text, preserving order. The prefix is
// forwarded to the underlying model only when it supports instructions and
// is silently dropped otherwise. The user context is forwarded on remote
// paths for usage attribution.
func (f *Function) Embed(ctx context.Context, texts []string, prefix string, user *UserContext) ([][]float32, error) {
	start := time.Now()
	var embErr error
	defer func() {
		f.metrics.RecordGeneration(ctx, f.modelName, "embed", time.Since(start), len(texts), embErr)
	}()

	if len(texts) == 0 {
		embErr = fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
		return nil, embErr
	}

	if !f.supportsPrefix {
		prefix = ""
	}

	var vectors [][]float32
	if f.remote != nil {
		vectors, embErr = f.remote.Embed(ctx, texts, user)
	} else {
		vectors, embErr = f.encoder.Encode(ctx, texts, prefix)
	}
	return vectors, embErr
}

// EmbedQuery returns the vector for a single text.
func (f *Function) EmbedQuery(ctx context.Context, text, prefix string, user *UserContext) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text}, prefix, user)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty result", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

// Engine returns the engine this function was configured for.
func (f *Function) Engine() string { return f.engine }

// ModelName returns the identifier of the model actually serving requests,
// which may be a fallback rather than the configured one.
func (f *Function) ModelName() string { return f.modelName }

// Dimension returns the fixed vector size produced by this function.
func (f *Function) Dimension() int { return f.dimension }
