package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeConstructor returns a fixed model or error and counts invocations.
type fakeConstructor struct {
	calls atomic.Int64
	delay time.Duration
	model Model
	err   error
}

func (c *fakeConstructor) ConstructModel(_ context.Context, _, _ string, _ bool) (Model, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.model, nil
}

// failingFactory always refuses to wrap.
type failingFactory struct {
	calls atomic.Int64
}

func (f *failingFactory) WrapModel(context.Context, string, string, Model, string, string, int) (*Function, error) {
	f.calls.Add(1)
	return nil, errors.New("wiring refused")
}

func TestInitializer_PrimarySuccess(t *testing.T) {
	model := &recordingModel{name: "primary-model", dimension: 4, supportsPrefix: true}
	ctor := &fakeConstructor{model: model}

	init := NewInitializer(InitConfig{}, WithConstructor(ctor), WithLogger(zap.NewNop()))

	var state State
	fn, err := init.Ensure(context.Background(), &state)
	require.NoError(t, err)

	assert.Equal(t, "primary-model", fn.ModelName())
	assert.Equal(t, 4, fn.Dimension())
	assert.Equal(t, int64(1), ctor.calls.Load())
	assert.True(t, state.Ready())
	assert.Same(t, fn, state.Function())
	assert.Same(t, Model(model), state.Model())
}

func TestInitializer_LocalFailureFallsBackToHash(t *testing.T) {
	isolateRuntime(t)

	ctor := &fakeConstructor{err: ErrLocalRuntimeUnavailable}
	init := NewInitializer(InitConfig{Engine: EngineLocal},
		WithConstructor(ctor), WithLogger(zap.NewNop()))

	var state State
	fn, err := init.Ensure(context.Background(), &state)
	require.NoError(t, err)

	// One primary attempt plus one retry after the shim.
	assert.Equal(t, int64(2), ctor.calls.Load())
	assert.Equal(t, HashModelName, fn.ModelName())
	assert.Equal(t, HashDimension, fn.Dimension())

	vectors, err := fn.Embed(context.Background(), []string{"still works"}, "", nil)
	require.NoError(t, err)
	assert.Len(t, vectors[0], HashDimension)
}

func TestInitializer_RemoteFailureSkipsShimRetry(t *testing.T) {
	ctor := &fakeConstructor{err: ErrExternalAPIUnavailable}
	init := NewInitializer(InitConfig{Engine: EngineOpenAI, BaseURL: "http://127.0.0.1:1"},
		WithConstructor(ctor), WithLogger(zap.NewNop()))

	var state State
	fn, err := init.Ensure(context.Background(), &state)
	require.NoError(t, err)

	// API engines get no shim retry: the runtime cannot fix a remote outage.
	assert.Equal(t, int64(1), ctor.calls.Load())
	assert.Equal(t, HashModelName, fn.ModelName())
}

func TestInitializer_EnsureIdempotent(t *testing.T) {
	ctor := &fakeConstructor{model: &recordingModel{name: "m", dimension: 4}}
	init := NewInitializer(InitConfig{}, WithConstructor(ctor), WithLogger(zap.NewNop()))

	var state State
	first, err := init.Ensure(context.Background(), &state)
	require.NoError(t, err)
	second, err := init.Ensure(context.Background(), &state)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int64(1), ctor.calls.Load())
}

func TestInitializer_ConcurrentEnsureConstructsOnce(t *testing.T) {
	ctor := &fakeConstructor{
		model: &recordingModel{name: "m", dimension: 4},
		delay: 20 * time.Millisecond,
	}
	init := NewInitializer(InitConfig{}, WithConstructor(ctor), WithLogger(zap.NewNop()))

	var state State
	var wg sync.WaitGroup
	results := make([]*Function, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fn, err := init.Ensure(context.Background(), &state)
			assert.NoError(t, err)
			results[i] = fn
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), ctor.calls.Load())
	for _, fn := range results {
		assert.Same(t, results[0], fn)
	}
}

func TestInitializer_SeparateStates(t *testing.T) {
	ctor := &fakeConstructor{model: &recordingModel{name: "m", dimension: 4}}
	init := NewInitializer(InitConfig{}, WithConstructor(ctor), WithLogger(zap.NewNop()))

	var a, b State
	fnA, err := init.Ensure(context.Background(), &a)
	require.NoError(t, err)
	fnB, err := init.Ensure(context.Background(), &b)
	require.NoError(t, err)

	assert.NotSame(t, fnA, fnB)
	assert.Equal(t, int64(2), ctor.calls.Load())
}

func TestInitializer_FactoryFailureWrapsDirectly(t *testing.T) {
	model := &recordingModel{name: "enc-model", dimension: 4}
	ctor := &fakeConstructor{model: model}
	factory := &failingFactory{}

	init := NewInitializer(InitConfig{},
		WithConstructor(ctor), WithFactory(factory), WithLogger(zap.NewNop()))

	var state State
	fn, err := init.Ensure(context.Background(), &state)
	require.NoError(t, err)

	assert.Equal(t, int64(1), factory.calls.Load())
	assert.Equal(t, "enc-model", fn.ModelName())

	_, err = fn.Embed(context.Background(), []string{"a"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, model.calls)
}

func TestInitializer_OpaqueModelFallsBackToHash(t *testing.T) {
	ctor := &fakeConstructor{model: bareModel{}}
	factory := &failingFactory{}

	init := NewInitializer(InitConfig{},
		WithConstructor(ctor), WithFactory(factory), WithLogger(zap.NewNop()))

	var state State
	fn, err := init.Ensure(context.Background(), &state)
	require.NoError(t, err)

	assert.Equal(t, HashModelName, fn.ModelName())
	assert.Equal(t, HashDimension, fn.Dimension())
}

func TestInitializer_FallbackAPIStage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req fallbackAPIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := fallbackAPIResponse{Embeddings: make([][]float32, len(req.Texts))}
		for i := range resp.Embeddings {
			resp.Embeddings[i] = []float32{0.5, 0.5}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	ctor := &fakeConstructor{err: ErrExternalAPIUnavailable}
	init := NewInitializer(InitConfig{Engine: EngineOpenAI, FallbackAPIURL: srv.URL},
		WithConstructor(ctor), WithLogger(zap.NewNop()))

	var state State
	fn, err := init.Ensure(context.Background(), &state)
	require.NoError(t, err)

	assert.Equal(t, "fallback/"+srv.URL, fn.ModelName())
	assert.Equal(t, 2, fn.Dimension())

	vectors, err := fn.Embed(context.Background(), []string{"a", "b"}, "", nil)
	require.NoError(t, err)
	assert.Len(t, vectors, 2)
}

func TestInitializer_FallbackAPIUnreachableEndsInHash(t *testing.T) {
	ctor := &fakeConstructor{err: ErrExternalAPIUnavailable}
	init := NewInitializer(InitConfig{Engine: EngineOpenAI, FallbackAPIURL: "http://127.0.0.1:1"},
		WithConstructor(ctor), WithLogger(zap.NewNop()))

	var state State
	fn, err := init.Ensure(context.Background(), &state)
	require.NoError(t, err)
	assert.Equal(t, HashModelName, fn.ModelName())
}

func TestNewInitializer_Defaults(t *testing.T) {
	init := NewInitializer(InitConfig{})

	assert.Equal(t, DefaultModel, init.config.Model)
	assert.Equal(t, 1, init.config.BatchSize)
	assert.NotNil(t, init.constructor)
	assert.NotNil(t, init.factory)
	assert.NotNil(t, init.metrics)
}
