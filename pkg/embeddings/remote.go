package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// defaultRequestTimeout bounds remote embedding calls.
	defaultRequestTimeout = 30 * time.Second

	// fallbackAPITimeout bounds direct fallback API calls and readiness
	// probes. Construction never blocks longer than this per attempt.
	fallbackAPITimeout = 10 * time.Second

	// probeText is embedded once at construction to verify the endpoint is
	// reachable and to learn the model dimension from the wire.
	probeText = "ping"
)

// RemoteConfig holds configuration for an API-backed embedding client.
type RemoteConfig struct {
	// Engine is EngineOpenAI or EngineOllama.
	Engine string

	// Model is the embedding model name sent with each request.
	Model string

	// BaseURL is the API base URL, e.g. https://api.openai.com/v1.
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// BatchSize caps the number of texts per request. Defaults to 1.
	BatchSize int

	// Timeout bounds each HTTP request. Defaults to 30s.
	Timeout time.Duration
}

// RemoteClient generates embeddings via an OpenAI- or Ollama-compatible API.
type RemoteClient struct {
	config RemoteConfig
	client *http.Client
	logger *zap.Logger
}

// NewRemoteClient creates a client for the given remote engine.
func NewRemoteClient(cfg RemoteConfig, logger *zap.Logger) (*RemoteClient, error) {
	switch cfg.Engine {
	case EngineOpenAI, EngineOllama:
	default:
		return nil, fmt.Errorf("%w: unknown remote engine %q", ErrInvalidConfig, cfg.Engine)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required for engine %q", ErrInvalidConfig, cfg.Engine)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RemoteClient{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Embed generates embeddings for texts, batching by the configured size.
// Output order matches input order across batches.
func (c *RemoteClient) Embed(ctx context.Context, texts []string, user *UserContext) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.config.BatchSize {
		end := min(start+c.config.BatchSize, len(texts))
		vectors, err := c.embedBatch(ctx, texts[start:end], user)
		if err != nil {
			return nil, err
		}
		if len(vectors) != end-start {
			return nil, fmt.Errorf("%w: got %d vectors for %d texts",
				ErrEmbeddingFailed, len(vectors), end-start)
		}
		out = append(out, vectors...)
	}

	return out, nil
}

func (c *RemoteClient) embedBatch(ctx context.Context, texts []string, user *UserContext) ([][]float32, error) {
	if c.config.Engine == EngineOpenAI {
		return c.embedOpenAI(ctx, texts, user)
	}
	return c.embedOllama(ctx, texts, user)
}

// openAIEmbeddingRequest is the request body for the OpenAI embeddings API.
type openAIEmbeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (c *RemoteClient) embedOpenAI(ctx context.Context, texts []string, user *UserContext) ([][]float32, error) {
	body, err := json.Marshal(openAIEmbeddingRequest{Input: texts, Model: c.config.Model})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.post(ctx, c.config.BaseURL+"/embeddings", body, user)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var parsed openAIEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	vectors := make([][]float32, len(parsed.Data))
	for i, d := range parsed.Data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

// ollamaEmbeddingRequest is the request body for Ollama's embed endpoint.
type ollamaEmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbeddingResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *RemoteClient) embedOllama(ctx context.Context, texts []string, user *UserContext) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbeddingRequest{Model: c.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.post(ctx, c.config.BaseURL+"/api/embed", body, user)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var parsed ollamaEmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return parsed.Embeddings, nil
}

func (c *RemoteClient) post(ctx context.Context, url string, body []byte, user *UserContext) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	setUserHeaders(req, user)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return resp, nil
}

// setUserHeaders forwards the caller identity so upstream providers can
// attribute usage.
func setUserHeaders(req *http.Request, user *UserContext) {
	if user == nil {
		return
	}
	if user.ID != "" {
		req.Header.Set("X-User-Id", user.ID)
	}
	if user.Name != "" {
		req.Header.Set("X-User-Name", user.Name)
	}
	if user.Email != "" {
		req.Header.Set("X-User-Email", user.Email)
	}
	if user.Role != "" {
		req.Header.Set("X-User-Role", user.Role)
	}
}

// remoteModel wraps a RemoteClient as a Model. The dimension is learned from
// a bounded readiness probe at construction, so an unreachable endpoint
// fails primary construction and lets the initializer fall back.
type remoteModel struct {
	client    *RemoteClient
	dimension int
}

func newRemoteModel(ctx context.Context, cfg RemoteConfig, logger *zap.Logger) (*remoteModel, error) {
	client, err := NewRemoteClient(cfg, logger)
	if err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, fallbackAPITimeout)
	defer cancel()

	vectors, err := client.Embed(probeCtx, []string{probeText}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: probe failed: %v", ErrExternalAPIUnavailable, err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty probe response", ErrExternalAPIUnavailable)
	}

	return &remoteModel{client: client, dimension: len(vectors[0])}, nil
}

// Name returns the remote model identifier.
func (m *remoteModel) Name() string { return m.client.config.Model }

// Dimension returns the probed embedding dimension.
func (m *remoteModel) Dimension() int { return m.dimension }

// Encode implements Encoder. Remote engines have no instruction parameter;
// the prefix is silently ignored.
func (m *remoteModel) Encode(ctx context.Context, texts []string, _ string) ([][]float32, error) {
	return m.client.Embed(ctx, texts, nil)
}

// FallbackAPIClient posts texts to a bare embedding endpoint:
//
//	POST {apiURL} {"texts": [...]}  ->  {"embeddings": [[...], ...]}
//
// Any transport error, non-2xx status, or malformed body is reported as
// ErrExternalAPIUnavailable. Callers treat that as "no result" and continue
// down the fallback chain; the client itself never panics.
type FallbackAPIClient struct {
	apiURL string
	client *http.Client
	logger *zap.Logger
}

// NewFallbackAPIClient creates a client for the direct fallback endpoint.
func NewFallbackAPIClient(apiURL string, logger *zap.Logger) *FallbackAPIClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FallbackAPIClient{
		apiURL: apiURL,
		client: &http.Client{Timeout: fallbackAPITimeout},
		logger: logger,
	}
}

type fallbackAPIRequest struct {
	Texts []string `json:"texts"`
}

type fallbackAPIResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed posts texts to the fallback endpoint and returns the embeddings in
// input order.
func (c *FallbackAPIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.apiURL == "" {
		return nil, fmt.Errorf("%w: no API URL configured", ErrExternalAPIUnavailable)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	body, err := json.Marshal(fallbackAPIRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("external embedding API call failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExternalAPIUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("external embedding API returned error status",
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: status %d", ErrExternalAPIUnavailable, resp.StatusCode)
	}

	var parsed fallbackAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		c.logger.Warn("external embedding API returned malformed response", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrExternalAPIUnavailable, err)
	}
	if parsed.Embeddings == nil {
		return nil, fmt.Errorf("%w: response missing embeddings", ErrExternalAPIUnavailable)
	}

	return parsed.Embeddings, nil
}

// fallbackAPIModel adapts a FallbackAPIClient into a Model so the external
// fallback endpoint can take a slot in the construction chain ahead of the
// hash embedder. The dimension is probed once at construction.
type fallbackAPIModel struct {
	client    *FallbackAPIClient
	dimension int
}

func newFallbackAPIModel(ctx context.Context, apiURL string, logger *zap.Logger) (*fallbackAPIModel, error) {
	client := NewFallbackAPIClient(apiURL, logger)

	probeCtx, cancel := context.WithTimeout(ctx, fallbackAPITimeout)
	defer cancel()

	vectors, err := client.Embed(probeCtx, []string{probeText})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: empty probe response", ErrExternalAPIUnavailable)
	}

	return &fallbackAPIModel{client: client, dimension: len(vectors[0])}, nil
}

// Name returns the fallback endpoint identifier.
func (m *fallbackAPIModel) Name() string { return "fallback/" + m.client.apiURL }

// Dimension returns the probed embedding dimension.
func (m *fallbackAPIModel) Dimension() int { return m.dimension }

// Encode implements Encoder. The prefix is ignored: the bare endpoint has no
// instruction parameter.
func (m *fallbackAPIModel) Encode(ctx context.Context, texts []string, _ string) ([][]float32, error) {
	return m.client.Embed(ctx, texts)
}
