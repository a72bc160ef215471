package embeddings

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Construction chain stages, recorded in logs and metrics.
const (
	stagePrimary     = "primary"
	stageShimRetry   = "shim_retry"
	stageFallbackAPI = "fallback_api"
	stageHash        = "hash"
)

// InitConfig carries the configuration consumed by the Initializer.
type InitConfig struct {
	// Engine selects the embedding backend: EngineLocal, EngineOpenAI, or
	// EngineOllama.
	Engine string

	// Model is the embedding model name. Defaults to DefaultModel.
	Model string

	// AutoUpdate allows the local engine to download missing model files.
	AutoUpdate bool

	// BaseURL and APIKey configure the remote engines. The caller selects
	// the endpoint matching the engine.
	BaseURL string
	APIKey  string

	// BatchSize caps texts per remote request. Defaults to 1.
	BatchSize int

	// CacheDir holds local model files.
	CacheDir string

	// Timeout bounds remote embedding requests. Defaults to 30s.
	Timeout time.Duration

	// FallbackAPIURL, when set, is tried as an extra chain stage between
	// the configured engine and the hash embedder.
	FallbackAPIURL string
}

// State is the per-application slot holding at most one model and one
// function. It is created empty, populated lazily on first need, and lives
// as long as its owner. The zero value is ready to use.
type State struct {
	mu    sync.RWMutex
	model Model
	fn    *Function
}

// Function returns the initialized embedding function, or nil.
func (s *State) Function() *Function {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fn
}

// Model returns the initialized model, or nil.
func (s *State) Model() Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Ready reports whether the slot is populated.
func (s *State) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model != nil && s.fn != nil
}

func (s *State) set(m Model, fn *Function) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = m
	s.fn = fn
}

// Initializer produces the process-scoped embedding function, degrading
// through the fallback chain: configured engine, runtime shim plus one retry
// for the local engine, optional external fallback API, hash embedder.
// Concurrent first requests share a single construction; once a State is
// populated, Ensure returns immediately without reconstruction.
type Initializer struct {
	config      InitConfig
	constructor ModelConstructor
	factory     FunctionFactory
	logger      *zap.Logger
	metrics     *Metrics
	group       singleflight.Group
}

// Option configures an Initializer.
type Option func(*Initializer)

// WithConstructor overrides the default model constructor.
func WithConstructor(c ModelConstructor) Option {
	return func(i *Initializer) { i.constructor = c }
}

// WithFactory overrides the default function factory.
func WithFactory(f FunctionFactory) Option {
	return func(i *Initializer) { i.factory = f }
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(i *Initializer) { i.logger = logger }
}

// WithMetrics sets the metrics sink. Defaults to a fresh instance on the
// global meter provider.
func WithMetrics(m *Metrics) Option {
	return func(i *Initializer) { i.metrics = m }
}

// NewInitializer creates an initializer for the given configuration.
func NewInitializer(cfg InitConfig, opts ...Option) *Initializer {
	init := &Initializer{config: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(init)
	}

	if init.config.Model == "" {
		init.config.Model = DefaultModel
	}
	if init.config.BatchSize <= 0 {
		init.config.BatchSize = 1
	}
	if init.constructor == nil {
		init.constructor = &DefaultConstructor{
			CacheDir:  init.config.CacheDir,
			BaseURL:   init.config.BaseURL,
			APIKey:    init.config.APIKey,
			BatchSize: init.config.BatchSize,
			Timeout:   init.config.Timeout,
			Logger:    init.logger,
		}
	}
	if init.factory == nil {
		init.factory = &DefaultFactory{Timeout: init.config.Timeout, Logger: init.logger}
	}
	if init.metrics == nil {
		init.metrics = NewMetrics(init.logger)
	}

	return init
}

// Ensure returns the embedding function for state, constructing it on first
// use. After the first success, Ensure is a guaranteed no-op returning the
// same function without any construction calls. It returns
// ErrAllFallbacksExhausted only when no function could be built at all,
// which the caller should surface as service-unavailable.
func (i *Initializer) Ensure(ctx context.Context, state *State) (*Function, error) {
	if fn := state.Function(); fn != nil {
		return fn, nil
	}

	key := fmt.Sprintf("%p", state)
	result, err, _ := i.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: a previous flight may have populated
		// the slot between our fast path and here.
		if fn := state.Function(); fn != nil {
			return fn, nil
		}
		return i.initialize(ctx, state)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Function), nil
}

func (i *Initializer) initialize(ctx context.Context, state *State) (*Function, error) {
	start := time.Now()
	var stage string
	var initErr error
	defer func() {
		i.metrics.RecordInitialization(ctx, i.config.Engine, stage, time.Since(start), initErr)
	}()

	i.logger.Info("initializing embedding function",
		zap.String("engine", engineLabel(i.config.Engine)),
		zap.String("model", i.config.Model))

	var model Model
	model, stage = i.constructModel(ctx)

	fn, err := i.wrapModel(ctx, model)
	if err != nil {
		initErr = err
		return nil, initErr
	}
	fn.metrics = i.metrics

	state.set(model, fn)

	i.logger.Info("embedding function initialized",
		zap.String("engine", engineLabel(i.config.Engine)),
		zap.String("model", fn.ModelName()),
		zap.String("stage", stage),
		zap.Int("dimension", fn.Dimension()))

	return fn, nil
}

// constructModel walks the construction chain and returns the first model
// that could be built, together with the stage that produced it. Every
// failure along the way is recoverable: it is logged with enough context to
// diagnose and swallowed. The chain terminates in the hash embedder, which
// cannot fail.
func (i *Initializer) constructModel(ctx context.Context) (Model, string) {
	model, err := i.constructor.ConstructModel(ctx, i.config.Engine, i.config.Model, i.config.AutoUpdate)
	if err == nil && model != nil {
		return model, stagePrimary
	}
	if err == nil {
		err = fmt.Errorf("%w: constructor returned no model", ErrInvalidConfig)
	}
	i.logger.Warn("primary embedding model construction failed",
		zap.String("engine", engineLabel(i.config.Engine)),
		zap.String("model", i.config.Model),
		zap.Error(err))

	// The local engine may only be missing its native runtime; apply the
	// shim and retry construction once.
	if i.config.Engine == EngineLocal {
		info := EnsureRuntimeShim(i.logger)
		i.logger.Info("runtime shim applied", zap.String("runtime", info.Kind.String()))

		model, err = i.constructor.ConstructModel(ctx, i.config.Engine, i.config.Model, i.config.AutoUpdate)
		if err == nil && model != nil {
			return model, stageShimRetry
		}
		if err != nil {
			i.logger.Warn("embedding model construction failed after shim", zap.Error(err))
		}
	}

	if i.config.FallbackAPIURL != "" {
		apiModel, apiErr := newFallbackAPIModel(ctx, i.config.FallbackAPIURL, i.logger)
		if apiErr == nil {
			return apiModel, stageFallbackAPI
		}
		i.logger.Warn("external fallback embedding API unavailable",
			zap.String("url", i.config.FallbackAPIURL),
			zap.Error(apiErr))
	}

	i.logger.Warn("falling back to deterministic hash embeddings",
		zap.String("model", HashModelName),
		zap.Int("dimension", HashDimension))
	return NewHashModel(), stageHash
}

// wrapModel wires the model into the uniform calling convention. When the
// factory fails it falls back to wrapping the model's own encode capability,
// and past that to the hash embedder.
func (i *Initializer) wrapModel(ctx context.Context, model Model) (*Function, error) {
	fn, err := i.factory.WrapModel(ctx, i.config.Engine, i.config.Model, model,
		i.config.BaseURL, i.config.APIKey, i.config.BatchSize)
	if err == nil && fn != nil {
		return fn, nil
	}
	if err != nil {
		i.logger.Warn("embedding function wiring failed, wrapping model directly", zap.Error(err))
	}

	if enc, ok := model.(Encoder); ok {
		return newEncoderFunction(i.config.Engine, model, enc), nil
	}

	i.logger.Warn("model exposes no direct encoding, using hash embedder",
		zap.String("model", model.Name()))
	hash := NewHashModel()
	fn = newEncoderFunction(i.config.Engine, hash, hash)
	if fn == nil {
		return nil, fmt.Errorf("%w: could not wrap any embedding model", ErrAllFallbacksExhausted)
	}
	return fn, nil
}
